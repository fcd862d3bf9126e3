package coingeckoApi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/internal/externalApi"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/coingeckoModel"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// тикер -> coingecko id для ходовых монет, остальные пробуем по lowercase тикеру
var symbolToID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"TON":   "the-open-network",
	"TRX":   "tron",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"SHIB":  "shiba-inu",
}

type CoingeckoApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *CoingeckoApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.CoingeckoApi.Url)
	return &CoingeckoApi{client: client}
}

// GetPrices returns USD prices for the given tickers. Tickers coingecko can't
// resolve are absent from the result, the caller decides what to do about
// partial data.
func (a *CoingeckoApi) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/api/v3/simple/price"

	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		id := coinID(symbol)
		ids = append(ids, id)
		idToSymbol[id] = symbol
	}

	params := map[string]string{
		"ids":           strings.Join(ids, ","),
		"vs_currencies": "usd",
	}

	slog.Debug("start CoingeckoApi.GetPrices request", slog.String("rqID", rqID), slog.Any("symbols", symbols))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing CoingeckoApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	rawPrices := coingeckoModel.RawPrices{}
	err = json.Unmarshal(resp.Body(), &rawPrices)
	if err != nil {
		slog.Error("can't unmarshall response into coingeckoModel.RawPrices", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	res := parseRawPrices(rawPrices, idToSymbol)

	slog.Debug("CoingeckoApi.GetPrices request complete", slog.String("rqID", rqID))

	return res, nil
}

func (a *CoingeckoApi) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := a.GetPrices(ctx, []string{symbol})
	if err != nil {
		return decimal.Decimal{}, err
	}

	price, ok := prices[symbol]
	if !ok {
		return decimal.Decimal{}, externalApi.ErrNotFound
	}

	return price, nil
}

func coinID(symbol string) string {
	if id, ok := symbolToID[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

func parseRawPrices(rawPrices coingeckoModel.RawPrices, idToSymbol map[string]string) map[string]decimal.Decimal {
	res := make(map[string]decimal.Decimal, len(rawPrices))

	for id, currencies := range rawPrices {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}

		usd, ok := currencies["usd"]
		if !ok {
			continue
		}

		res[symbol] = decimal.NewFromFloat(usd)
	}

	return res
}
