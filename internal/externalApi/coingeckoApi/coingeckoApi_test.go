package coingeckoApi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/internal/externalApi"
	"github.com/shopspring/decimal"
)

func newTestApi(handler http.HandlerFunc) (*CoingeckoApi, *httptest.Server) {
	server := httptest.NewServer(handler)
	cfg := &config.Config{
		API: config.API{
			Timeout:      5 * time.Second,
			CoingeckoApi: config.CoingeckoApi{Url: server.URL},
		},
	}
	return New(cfg), server
}

func TestGetPrices(t *testing.T) {
	api, server := newTestApi(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
			t.Errorf("expected vs_currencies=usd, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":65000.5},"ethereum":{"usd":3000}}`))
	})
	defer server.Close()

	prices, err := api.GetPrices(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !prices["BTC"].Equal(decimal.RequireFromString("65000.5")) {
		t.Errorf("BTC: expected 65000.5, got %s", prices["BTC"])
	}
	if !prices["ETH"].Equal(decimal.NewFromInt(3000)) {
		t.Errorf("ETH: expected 3000, got %s", prices["ETH"])
	}
}

func TestGetPricesPartialResponse(t *testing.T) {
	api, server := newTestApi(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":65000}}`))
	})
	defer server.Close()

	prices, err := api.GetPrices(context.Background(), []string{"BTC", "NOPE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prices) != 1 {
		t.Fatalf("expected only resolved symbols in result, got %v", prices)
	}
	if _, ok := prices["NOPE"]; ok {
		t.Error("unresolved symbol must be absent from the result")
	}
}

func TestGetPriceNotFound(t *testing.T) {
	api, server := newTestApi(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	defer server.Close()

	_, err := api.GetPrice(context.Background(), "NOPE")
	if !errors.Is(err, externalApi.ErrNotFound) {
		t.Errorf("expected externalApi.ErrNotFound, got %v", err)
	}
}

func TestGetPricesEmptySymbols(t *testing.T) {
	api, server := newTestApi(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty symbol list")
	})
	defer server.Close()

	prices, err := api.GetPrices(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 0 {
		t.Errorf("expected empty result, got %v", prices)
	}
}

func TestCoinID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{symbol: "BTC", want: "bitcoin"},
		{symbol: "TON", want: "the-open-network"},
		{symbol: "NEWCOIN", want: "newcoin"},
	}

	for _, tt := range tests {
		if got := coinID(tt.symbol); got != tt.want {
			t.Errorf("coinID(%s): expected %s, got %s", tt.symbol, tt.want, got)
		}
	}
}
