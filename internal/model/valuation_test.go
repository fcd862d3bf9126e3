package model_test

import (
	"testing"

	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/shopspring/decimal"
)

func TestValuate(t *testing.T) {
	account := model.Account{CashBalance: decimal.NewFromInt(2000)}
	positions := []model.Position{
		{Symbol: "BTC", Quantity: decimal.RequireFromString("0.2"), AvgCost: decimal.NewFromInt(40000)},
		{Symbol: "ETH", Quantity: decimal.NewFromInt(2), AvgCost: decimal.NewFromInt(2500)},
	}
	prices := map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(45000),
		"ETH": decimal.NewFromInt(2000),
	}

	v := model.Valuate(account, positions, prices, decimal.NewFromInt(10000))

	if len(v.Positions) != 2 {
		t.Fatalf("expected 2 priced positions, got %d", len(v.Positions))
	}

	// BTC: 0.2*45000 = 9000, pnl 9000 - 0.2*40000 = 1000
	if !v.Positions[0].MarketValue.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("BTC market value: expected 9000, got %s", v.Positions[0].MarketValue)
	}
	if !v.Positions[0].UnrealizedPnl.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("BTC unrealized pnl: expected 1000, got %s", v.Positions[0].UnrealizedPnl)
	}

	// ETH: 2*2000 = 4000, pnl 4000 - 2*2500 = -1000
	if !v.Positions[1].UnrealizedPnl.Equal(decimal.NewFromInt(-1000)) {
		t.Errorf("ETH unrealized pnl: expected -1000, got %s", v.Positions[1].UnrealizedPnl)
	}

	if !v.TotalMarketValue.Equal(decimal.NewFromInt(13000)) {
		t.Errorf("total market value: expected 13000, got %s", v.TotalMarketValue)
	}
	if !v.TotalUnrealizedPnl.Equal(decimal.Zero) {
		t.Errorf("total unrealized pnl: expected 0, got %s", v.TotalUnrealizedPnl)
	}
	if !v.TotalValue.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("total value: expected 15000, got %s", v.TotalValue)
	}
	if !v.TotalPnl.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("total pnl: expected 5000, got %s", v.TotalPnl)
	}
}

func TestValuateUnpricedExcluded(t *testing.T) {
	account := model.Account{CashBalance: decimal.NewFromInt(1000)}
	positions := []model.Position{
		{Symbol: "BTC", Quantity: decimal.NewFromInt(1), AvgCost: decimal.NewFromInt(40000)},
		{Symbol: "XYZ", Quantity: decimal.NewFromInt(100), AvgCost: decimal.NewFromInt(5)},
	}
	prices := map[string]decimal.Decimal{"BTC": decimal.NewFromInt(41000)}

	v := model.Valuate(account, positions, prices, decimal.NewFromInt(10000))

	if len(v.Positions) != 1 {
		t.Fatalf("expected 1 priced position, got %d", len(v.Positions))
	}
	if len(v.Unpriced) != 1 || v.Unpriced[0] != "XYZ" {
		t.Fatalf("expected XYZ in Unpriced, got %v", v.Unpriced)
	}
	if !v.TotalMarketValue.Equal(decimal.NewFromInt(41000)) {
		t.Errorf("unpriced position must not contribute to totals, got %s", v.TotalMarketValue)
	}
}

func TestValuateEmptyPortfolio(t *testing.T) {
	account := model.Account{CashBalance: decimal.NewFromInt(10000)}

	v := model.Valuate(account, nil, nil, decimal.NewFromInt(10000))

	if !v.TotalValue.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected total value equal to cash, got %s", v.TotalValue)
	}
	if !v.TotalPnl.IsZero() {
		t.Errorf("expected zero total pnl, got %s", v.TotalPnl)
	}
}
