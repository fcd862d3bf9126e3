package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Account struct {
	UserID        int64
	ChatID        int64
	CashBalance   decimal.Decimal
	TotalInvested decimal.Decimal
	HasApiKeys    bool
}

type Position struct {
	UserID   int64
	Symbol   string
	Quantity decimal.Decimal
	AvgCost  decimal.Decimal
}

type Transaction struct {
	TransactionID int64
	UserID        int64
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Notional      decimal.Decimal
	Archived      bool
	DtCreate      time.Time
}

type TradeResult struct {
	Symbol         string
	Side           Side
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Notional       decimal.Decimal
	RealizedPnl    decimal.Decimal
	CashBalance    decimal.Decimal
	Position       Position
	PositionClosed bool
}
