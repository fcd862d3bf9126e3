package demoLedgerService_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/data/repository/memory"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/service"
	"github.com/KotFed0t/crypto_demo_bot/internal/service/demoLedgerService"
	"github.com/shopspring/decimal"
)

type stubCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newStubCache() *stubCache {
	return &stubCache{prices: make(map[string]decimal.Decimal)}
}

func (c *stubCache) GetPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make(map[string]decimal.Decimal)
	for _, symbol := range symbols {
		if price, ok := c.prices[symbol]; ok {
			res[symbol] = price
		}
	}
	return res, nil
}

func (c *stubCache) SetPrices(_ context.Context, prices map[string]decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for symbol, price := range prices {
		c.prices[symbol] = price
	}
	return nil
}

type stubMarketApi struct {
	prices map[string]decimal.Decimal
	err    error
}

func (a *stubMarketApi) GetPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if a.err != nil {
		return nil, a.err
	}

	res := make(map[string]decimal.Decimal)
	for _, symbol := range symbols {
		if price, ok := a.prices[symbol]; ok {
			res[symbol] = price
		}
	}
	return res, nil
}

type stubReportGenerator struct {
	transactions []model.Transaction
}

func (g *stubReportGenerator) GenerateTransactionsReport(transactions []model.Transaction) (*bytes.Buffer, error) {
	g.transactions = transactions
	return bytes.NewBufferString("report"), nil
}

type stubNotifier struct {
	messages map[int64][]string
	err      error
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{messages: make(map[int64][]string)}
}

func (n *stubNotifier) Notify(chatID int64, message string) error {
	if n.err != nil {
		return n.err
	}
	n.messages[chatID] = append(n.messages[chatID], message)
	return nil
}

func testConfig(startingBalance string) *config.Config {
	return &config.Config{
		Demo: config.Demo{
			StartingBalance: startingBalance,
			HistoryLimit:    10,
		},
	}
}

func newTestService(startingBalance string, marketPrices map[string]decimal.Decimal) (*demoLedgerService.DemoLedgerService, *stubReportGenerator) {
	reportGenerator := &stubReportGenerator{}
	srv := demoLedgerService.New(
		testConfig(startingBalance),
		memory.NewMemory(),
		newStubCache(),
		&stubMarketApi{prices: marketPrices},
		reportGenerator,
	)
	return srv, reportGenerator
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

const chatID int64 = 42

func TestGetOrCreateAccount(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	account, err := srv.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.CashBalance.Equal(dec("10000")) {
		t.Errorf("expected starting balance 10000, got %s", account.CashBalance)
	}

	again, err := srv.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.UserID != account.UserID {
		t.Errorf("expected same account on second call, got userID %d and %d", account.UserID, again.UserID)
	}
}

func TestBuySellScenario(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	res, err := srv.Buy(ctx, chatID, "BTC", dec("0.1"), decPtr("30000"))
	if err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if !res.CashBalance.Equal(dec("7000")) {
		t.Errorf("cash after first buy: expected 7000, got %s", res.CashBalance)
	}
	if !res.Position.AvgCost.Equal(dec("30000")) {
		t.Errorf("avg cost after first buy: expected 30000, got %s", res.Position.AvgCost)
	}

	res, err = srv.Buy(ctx, chatID, "BTC", dec("0.1"), decPtr("50000"))
	if err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if !res.CashBalance.Equal(dec("2000")) {
		t.Errorf("cash after second buy: expected 2000, got %s", res.CashBalance)
	}
	if !res.Position.Quantity.Equal(dec("0.2")) {
		t.Errorf("quantity after second buy: expected 0.2, got %s", res.Position.Quantity)
	}
	if !res.Position.AvgCost.Equal(dec("40000")) {
		t.Errorf("avg cost after second buy: expected 40000, got %s", res.Position.AvgCost)
	}

	res, err = srv.Sell(ctx, chatID, "BTC", dec("0.2"), decPtr("45000"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !res.RealizedPnl.Equal(dec("1000")) {
		t.Errorf("realized pnl: expected 1000, got %s", res.RealizedPnl)
	}
	if !res.CashBalance.Equal(dec("11000")) {
		t.Errorf("cash after sell: expected 11000, got %s", res.CashBalance)
	}
	if !res.PositionClosed {
		t.Error("expected position to be closed after selling the full quantity")
	}

	valuation, err := srv.GetPortfolio(ctx, chatID)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(valuation.Positions) != 0 || len(valuation.Unpriced) != 0 {
		t.Errorf("expected empty portfolio after full sell, got %+v", valuation)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	srv, _ := newTestService("100", nil)
	ctx := context.Background()

	_, err := srv.Buy(ctx, chatID, "ETH", dec("1"), decPtr("150"))

	var fundsErr *service.InsufficientFundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !fundsErr.Shortfall.Equal(dec("50")) {
		t.Errorf("expected shortfall 50, got %s", fundsErr.Shortfall)
	}

	account, err := srv.GetBalance(ctx, chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.CashBalance.Equal(dec("100")) {
		t.Errorf("balance must stay unchanged on rejected buy, got %s", account.CashBalance)
	}

	history, err := srv.GetHistory(ctx, chatID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rejected buy must not be recorded, got %d transactions", len(history))
	}
}

func TestSellInsufficientHoldings(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	_, err := srv.Buy(ctx, chatID, "BTC", dec("0.1"), decPtr("30000"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	_, err = srv.Sell(ctx, chatID, "BTC", dec("0.5"), decPtr("30000"))

	var holdingsErr *service.InsufficientHoldingsError
	if !errors.As(err, &holdingsErr) {
		t.Fatalf("expected InsufficientHoldingsError, got %v", err)
	}
	if !holdingsErr.Shortfall.Equal(dec("0.4")) {
		t.Errorf("expected shortfall 0.4, got %s", holdingsErr.Shortfall)
	}

	if !errors.Is(err, service.ErrInsufficientHoldings) {
		t.Error("typed error must match the sentinel")
	}

	account, _ := srv.GetBalance(ctx, chatID)
	if !account.CashBalance.Equal(dec("7000")) {
		t.Errorf("balance must stay unchanged on rejected sell, got %s", account.CashBalance)
	}
}

func TestSellUnknownSymbol(t *testing.T) {
	srv, _ := newTestService("10000", nil)

	_, err := srv.Sell(context.Background(), chatID, "BTC", dec("1"), decPtr("30000"))

	var holdingsErr *service.InsufficientHoldingsError
	if !errors.As(err, &holdingsErr) {
		t.Fatalf("expected InsufficientHoldingsError on sell without position, got %v", err)
	}
}

func TestPartialSellKeepsAvgCost(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	_, err := srv.Buy(ctx, chatID, "BTC", dec("0.2"), decPtr("40000"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	res, err := srv.Sell(ctx, chatID, "BTC", dec("0.1"), decPtr("45000"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	if res.PositionClosed {
		t.Error("partial sell must not close the position")
	}
	if !res.Position.Quantity.Equal(dec("0.1")) {
		t.Errorf("expected remaining quantity 0.1, got %s", res.Position.Quantity)
	}
	if !res.Position.AvgCost.Equal(dec("40000")) {
		t.Errorf("avg cost must not change on sell, got %s", res.Position.AvgCost)
	}
	if !res.RealizedPnl.Equal(dec("500")) {
		t.Errorf("expected realized pnl 500, got %s", res.RealizedPnl)
	}
}

func TestBuyVWAPOrderIndependence(t *testing.T) {
	ctx := context.Background()

	buys := [][2]string{{"0.1", "30000"}, {"0.3", "50000"}, {"0.2", "20000"}}
	reversed := [][2]string{{"0.2", "20000"}, {"0.3", "50000"}, {"0.1", "30000"}}

	run := func(orders [][2]string) model.TradeResult {
		srv, _ := newTestService("100000", nil)
		var res model.TradeResult
		for _, order := range orders {
			var err error
			res, err = srv.Buy(ctx, chatID, "BTC", dec(order[0]), decPtr(order[1]))
			if err != nil {
				t.Fatalf("buy %v: %v", order, err)
			}
		}
		return res
	}

	first := run(buys)
	second := run(reversed)

	if !first.Position.AvgCost.Equal(second.Position.AvgCost) {
		t.Errorf("avg cost must not depend on buy order: %s vs %s", first.Position.AvgCost, second.Position.AvgCost)
	}
	if !first.Position.Quantity.Equal(second.Position.Quantity) {
		t.Errorf("quantity must not depend on buy order: %s vs %s", first.Position.Quantity, second.Position.Quantity)
	}
}

func TestBuyValidation(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		symbol   string
		quantity decimal.Decimal
		price    *decimal.Decimal
	}{
		{name: "lowercase symbol", symbol: "btc", quantity: dec("1"), price: decPtr("100")},
		{name: "symbol with spaces", symbol: "B TC", quantity: dec("1"), price: decPtr("100")},
		{name: "zero quantity", symbol: "BTC", quantity: dec("0"), price: decPtr("100")},
		{name: "negative quantity", symbol: "BTC", quantity: dec("-1"), price: decPtr("100")},
		{name: "zero price", symbol: "BTC", quantity: dec("1"), price: decPtr("0")},
		{name: "negative price", symbol: "BTC", quantity: dec("1"), price: decPtr("-5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.Buy(ctx, chatID, tt.symbol, tt.quantity, tt.price)
			if !errors.Is(err, service.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestBuyAtMarketPrice(t *testing.T) {
	srv, _ := newTestService("10000", map[string]decimal.Decimal{"BTC": dec("50000")})
	ctx := context.Background()

	res, err := srv.Buy(ctx, chatID, "BTC", dec("0.1"), nil)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	if !res.Price.Equal(dec("50000")) {
		t.Errorf("expected market price 50000, got %s", res.Price)
	}
	if !res.CashBalance.Equal(dec("5000")) {
		t.Errorf("expected cash 5000, got %s", res.CashBalance)
	}
}

func TestBuyAtMarketPriceUnknownSymbol(t *testing.T) {
	srv, _ := newTestService("10000", map[string]decimal.Decimal{"BTC": dec("50000")})

	_, err := srv.Buy(context.Background(), chatID, "NOPE", dec("1"), nil)
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown symbol, got %v", err)
	}
}

func TestGetPriceApiUnavailable(t *testing.T) {
	srv := demoLedgerService.New(
		testConfig("10000"),
		memory.NewMemory(),
		newStubCache(),
		&stubMarketApi{err: errors.New("api down")},
		&stubReportGenerator{},
	)

	_, err := srv.GetPrice(context.Background(), "BTC")
	if !errors.Is(err, service.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestGetPortfolioUnpricedSymbolExcluded(t *testing.T) {
	srv, _ := newTestService("10000", map[string]decimal.Decimal{"BTC": dec("60000")})
	ctx := context.Background()

	if _, err := srv.Buy(ctx, chatID, "BTC", dec("0.1"), decPtr("50000")); err != nil {
		t.Fatalf("buy BTC: %v", err)
	}
	if _, err := srv.Buy(ctx, chatID, "XYZ", dec("10"), decPtr("100")); err != nil {
		t.Fatalf("buy XYZ: %v", err)
	}

	valuation, err := srv.GetPortfolio(ctx, chatID)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}

	if len(valuation.Positions) != 1 {
		t.Fatalf("expected 1 priced position, got %d", len(valuation.Positions))
	}
	if !valuation.Positions[0].UnrealizedPnl.Equal(dec("1000")) {
		t.Errorf("expected unrealized pnl 1000, got %s", valuation.Positions[0].UnrealizedPnl)
	}
	if len(valuation.Unpriced) != 1 || valuation.Unpriced[0] != "XYZ" {
		t.Errorf("expected XYZ in unpriced, got %v", valuation.Unpriced)
	}
	// XYZ не входит в тоталы
	if !valuation.TotalMarketValue.Equal(dec("6000")) {
		t.Errorf("expected total market value 6000, got %s", valuation.TotalMarketValue)
	}
}

func TestReset(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	if _, err := srv.Buy(ctx, chatID, "BTC", dec("0.1"), decPtr("30000")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := srv.Sell(ctx, chatID, "BTC", dec("0.05"), decPtr("35000")); err != nil {
		t.Fatalf("sell: %v", err)
	}

	if err := srv.Reset(ctx, chatID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	account, _ := srv.GetBalance(ctx, chatID)
	if !account.CashBalance.Equal(dec("10000")) {
		t.Errorf("expected starting balance restored, got %s", account.CashBalance)
	}
	if !account.TotalInvested.IsZero() {
		t.Errorf("expected total invested reset to zero, got %s", account.TotalInvested)
	}

	valuation, err := srv.GetPortfolio(ctx, chatID)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(valuation.Positions) != 0 || len(valuation.Unpriced) != 0 {
		t.Error("expected no positions after reset")
	}

	history, err := srv.GetHistory(ctx, chatID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("transactions must survive reset, got %d", len(history))
	}
	for _, transaction := range history {
		if !transaction.Archived {
			t.Errorf("expected transaction %d archived after reset", transaction.TransactionID)
		}
	}
}

func TestGetHistoryDefaultLimit(t *testing.T) {
	srv, _ := newTestService("1000000", nil)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := srv.Buy(ctx, chatID, "BTC", dec("0.001"), decPtr("30000")); err != nil {
			t.Fatalf("buy #%d: %v", i, err)
		}
	}

	history, err := srv.GetHistory(ctx, chatID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 10 {
		t.Errorf("expected default limit of 10, got %d", len(history))
	}
}

func TestExportHistoryIncludesEverything(t *testing.T) {
	srv, reportGenerator := newTestService("10000", nil)
	ctx := context.Background()

	if _, err := srv.Buy(ctx, chatID, "BTC", dec("0.1"), decPtr("30000")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := srv.Reset(ctx, chatID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := srv.Buy(ctx, chatID, "ETH", dec("1"), decPtr("2000")); err != nil {
		t.Fatalf("buy after reset: %v", err)
	}

	report, err := srv.ExportHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if report.Len() == 0 {
		t.Error("expected non-empty report")
	}
	if len(reportGenerator.transactions) != 2 {
		t.Errorf("export must include archived transactions, got %d", len(reportGenerator.transactions))
	}
}

func TestApiKeys(t *testing.T) {
	srv, _ := newTestService("10000", nil)
	ctx := context.Background()

	if err := srv.SaveApiKeys(ctx, chatID, "", "secret"); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput on empty key, got %v", err)
	}

	if err := srv.SaveApiKeys(ctx, chatID, "key", "secret"); err != nil {
		t.Fatalf("save keys: %v", err)
	}

	account, _ := srv.GetBalance(ctx, chatID)
	if !account.HasApiKeys {
		t.Error("expected HasApiKeys after SaveApiKeys")
	}

	if err := srv.DisconnectApi(ctx, chatID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	account, _ = srv.GetBalance(ctx, chatID)
	if account.HasApiKeys {
		t.Error("expected HasApiKeys cleared after DisconnectApi")
	}
}
