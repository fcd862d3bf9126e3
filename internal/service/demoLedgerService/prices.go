package demoLedgerService

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/internal/service"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/shopspring/decimal"
)

func (s *DemoLedgerService) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !symbolRe.MatchString(symbol) {
		return decimal.Decimal{}, service.ErrInvalidInput
	}

	prices, err := s.getPrices(ctx, []string{symbol})
	if err != nil {
		return decimal.Decimal{}, err
	}

	price, ok := prices[symbol]
	if !ok {
		return decimal.Decimal{}, service.ErrNotFound
	}

	return price, nil
}

// getPrices answers from cache where possible and fetches the rest from the
// market api in one batch. Symbols the api can't resolve are absent from the
// result, partial data is not an error.
func (s *DemoLedgerService) getPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.getPrices"

	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	prices, err := s.cache.GetPrices(ctx, symbols)
	if err != nil {
		slog.Warn("can't get prices from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		prices = make(map[string]decimal.Decimal, len(symbols))
	}

	missing := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if _, ok := prices[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}

	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := s.marketApi.GetPrices(ctx, missing)
	if err != nil {
		slog.Error("can't get prices from marketApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, service.ErrPriceUnavailable
	}

	for symbol, price := range fetched {
		prices[symbol] = price
	}

	if len(fetched) > 0 {
		go s.cache.SetPrices(context.WithoutCancel(ctx), fetched)
	}

	return prices, nil
}
