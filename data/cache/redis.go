package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const priceKeyPrefix = "price:"

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func (r *RedisCache) SetPrices(ctx context.Context, prices map[string]decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetPrices start", slog.String("rqID", rqID))

	pipe := r.redis.Pipeline()
	for symbol, price := range prices {
		pipe.Set(ctx, priceKeyPrefix+symbol, price.String(), r.cfg.Cache.PricesExpiration)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetPrices completed", slog.String("rqID", rqID))

	return nil
}

// GetPrices returns prices for cached symbols only, symbols without a fresh
// cache entry are simply absent from the result.
func (r *RedisCache) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetPrices start", slog.String("rqID", rqID))

	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	keys := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		keys = append(keys, priceKeyPrefix+symbol)
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	for i, value := range values {
		strValue, ok := value.(string)
		if !ok {
			continue
		}

		price, err := decimal.NewFromString(strValue)
		if err != nil {
			slog.Error(
				"can't parse cached price",
				slog.String("rqID", rqID),
				slog.String("symbol", symbols[i]),
				slog.String("value", strValue),
			)
			return nil, errors.New("can't parse cached price")
		}
		prices[symbols[i]] = price
	}

	slog.Debug("GetPrices completed", slog.String("rqID", rqID))

	return prices, nil
}
