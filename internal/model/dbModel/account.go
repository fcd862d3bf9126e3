package dbModel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	UserID        int64           `db:"user_id"`
	ChatID        int64           `db:"chat_id"`
	CashBalance   decimal.Decimal `db:"cash_balance"`
	TotalInvested decimal.Decimal `db:"total_invested"`
	ApiKey        sql.NullString  `db:"api_key"`
	ApiSecret     sql.NullString  `db:"api_secret"`
	DtCreate      time.Time       `db:"dt_create"`
}

type Position struct {
	UserID   int64           `db:"user_id"`
	Symbol   string          `db:"symbol"`
	Quantity decimal.Decimal `db:"quantity"`
	AvgCost  decimal.Decimal `db:"avg_cost"`
}

type Transaction struct {
	TransactionID int64           `db:"transaction_id"`
	UserID        int64           `db:"user_id"`
	Symbol        string          `db:"symbol"`
	Side          string          `db:"side"`
	Quantity      decimal.Decimal `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	Notional      decimal.Decimal `db:"notional"`
	Archived      bool            `db:"archived"`
	DtCreate      time.Time       `db:"dt_create"`
}

type Alert struct {
	AlertID   int64           `db:"alert_id"`
	UserID    int64           `db:"user_id"`
	ChatID    int64           `db:"chat_id"`
	Symbol    string          `db:"symbol"`
	Direction string          `db:"direction"`
	Threshold decimal.Decimal `db:"threshold"`
	Active    bool            `db:"active"`
	DtCreate  time.Time       `db:"dt_create"`
}
