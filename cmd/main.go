package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/data"
	"github.com/KotFed0t/crypto_demo_bot/data/cache"
	"github.com/KotFed0t/crypto_demo_bot/data/repository/memory"
	"github.com/KotFed0t/crypto_demo_bot/data/repository/postgres"
	"github.com/KotFed0t/crypto_demo_bot/data/session"
	"github.com/KotFed0t/crypto_demo_bot/internal/externalApi/coingeckoApi"
	"github.com/KotFed0t/crypto_demo_bot/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/crypto_demo_bot/internal/scheduler"
	"github.com/KotFed0t/crypto_demo_bot/internal/service/demoLedgerService"
	"github.com/KotFed0t/crypto_demo_bot/internal/tgbot"
	"github.com/KotFed0t/crypto_demo_bot/internal/transport/telegram"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	var repo demoLedgerService.Repository
	if cfg.Postgres.Enabled {
		pgClient := data.NewPostgresClient(cfg)
		defer pgClient.Close()
		repo = postgres.NewPostgres(pgClient)
	} else {
		// in-memory режим для локального запуска без БД
		repo = memory.NewMemory()
	}

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	marketApi := coingeckoApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	demoLedgerSrv := demoLedgerService.New(cfg, repo, redisCache, marketApi, reportGenerator)

	tgController := telegram.NewController(demoLedgerSrv, redisSession)

	tgBot := tgbot.New(cfg, tgController, redisSession)
	tgBot.Start()
	defer tgBot.Stop()

	sched := scheduler.New()
	sched.NewIntervalJob("check price alerts", func(ctx context.Context) error {
		return demoLedgerSrv.CheckAlerts(ctx, tgBot)
	}, cfg.Jobs.AlertsCheckInterval, false)
	sched.Start()
	defer sched.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
