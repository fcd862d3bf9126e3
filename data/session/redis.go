package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func (r *RedisSession) GetSession(ctx context.Context, key string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, sessionKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return model.Session{}, err
	}

	chatSession := model.Session{}
	err = json.Unmarshal([]byte(res), &chatSession)
	if err != nil {
		slog.Error("can't unmarshall session", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Session{}, errors.New("can't unmarshall session")
	}

	return chatSession, nil
}

// SetSession stores the session with the configured TTL, so an abandoned
// multi-step flow expires back to the default state on its own.
func (r *RedisSession) SetSession(ctx context.Context, key string, chatSession model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	sessionJson, err := json.Marshal(chatSession)
	if err != nil {
		slog.Error("can't marshall session", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshall session")
	}

	err = r.redis.Set(ctx, sessionKeyPrefix+key, sessionJson, r.cfg.SessionExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	return nil
}

func (r *RedisSession) DeleteSession(ctx context.Context, key string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	err := r.redis.Del(ctx, sessionKeyPrefix+key).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	return nil
}
