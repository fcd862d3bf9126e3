package model

import "github.com/shopspring/decimal"

type PositionValuation struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgCost       decimal.Decimal
	Price         decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnl decimal.Decimal
}

type Valuation struct {
	CashBalance        decimal.Decimal
	Positions          []PositionValuation
	Unpriced           []string
	TotalMarketValue   decimal.Decimal
	TotalUnrealizedPnl decimal.Decimal
	TotalValue         decimal.Decimal
	TotalPnl           decimal.Decimal
}

// Valuate prices open positions with the supplied price map. Symbols missing
// from the map are excluded from the totals and reported in Unpriced instead
// of being counted as zero.
func Valuate(account Account, positions []Position, prices map[string]decimal.Decimal, startingBalance decimal.Decimal) Valuation {
	v := Valuation{CashBalance: account.CashBalance}

	for _, pos := range positions {
		price, ok := prices[pos.Symbol]
		if !ok {
			v.Unpriced = append(v.Unpriced, pos.Symbol)
			continue
		}

		marketValue := pos.Quantity.Mul(price)
		unrealizedPnl := marketValue.Sub(pos.Quantity.Mul(pos.AvgCost))

		v.Positions = append(v.Positions, PositionValuation{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgCost:       pos.AvgCost,
			Price:         price,
			MarketValue:   marketValue,
			UnrealizedPnl: unrealizedPnl,
		})

		v.TotalMarketValue = v.TotalMarketValue.Add(marketValue)
		v.TotalUnrealizedPnl = v.TotalUnrealizedPnl.Add(unrealizedPnl)
	}

	v.TotalValue = account.CashBalance.Add(v.TotalMarketValue)
	v.TotalPnl = v.TotalValue.Sub(startingBalance)

	return v
}
