package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertDirection string

const (
	AlertAbove AlertDirection = "above"
	AlertBelow AlertDirection = "below"
)

type Alert struct {
	AlertID   int64
	UserID    int64
	ChatID    int64
	Symbol    string
	Direction AlertDirection
	Threshold decimal.Decimal
	Active    bool
	DtCreate  time.Time
}
