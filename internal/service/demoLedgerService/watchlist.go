package demoLedgerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/data/repository"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/service"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/shopspring/decimal"
)

func (s *DemoLedgerService) AddToWatchlist(ctx context.Context, chatID int64, symbol string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.AddToWatchlist"

	if !symbolRe.MatchString(symbol) {
		return service.ErrInvalidInput
	}

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.AddToWatchlist(ctx, account.UserID, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		slog.Error("got error from repo.AddToWatchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *DemoLedgerService) RemoveFromWatchlist(ctx context.Context, chatID int64, symbol string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.RemoveFromWatchlist"

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.RemoveFromWatchlist(ctx, account.UserID, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.RemoveFromWatchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// GetWatchlist returns the watched symbols with current prices where the
// lookup succeeded, symbols without a price are still listed.
func (s *DemoLedgerService) GetWatchlist(ctx context.Context, chatID int64) ([]string, map[string]decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.GetWatchlist"

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}

	symbols, err := s.repo.GetWatchlist(ctx, account.UserID)
	if err != nil {
		slog.Error("got error from repo.GetWatchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, nil, err
	}

	prices, err := s.getPrices(ctx, symbols)
	if err != nil {
		// вотчлист показываем и без цен
		slog.Warn("can't get prices for watchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		prices = map[string]decimal.Decimal{}
	}

	return symbols, prices, nil
}

func (s *DemoLedgerService) CreateAlert(ctx context.Context, chatID int64, symbol string, direction model.AlertDirection, threshold decimal.Decimal) (model.Alert, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.CreateAlert"

	if !symbolRe.MatchString(symbol) || !threshold.IsPositive() {
		return model.Alert{}, service.ErrInvalidInput
	}
	if direction != model.AlertAbove && direction != model.AlertBelow {
		return model.Alert{}, service.ErrInvalidInput
	}

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return model.Alert{}, err
	}

	alert := model.Alert{
		UserID:    account.UserID,
		ChatID:    chatID,
		Symbol:    symbol,
		Direction: direction,
		Threshold: threshold,
		Active:    true,
	}

	alertID, err := s.repo.InsertAlert(ctx, alert)
	if err != nil {
		slog.Error("got error from repo.InsertAlert", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Alert{}, err
	}

	alert.AlertID = alertID
	return alert, nil
}

func (s *DemoLedgerService) GetAlerts(ctx context.Context, chatID int64) ([]model.Alert, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.GetAlerts"

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return nil, err
	}

	alerts, err := s.repo.GetAlertsByUser(ctx, account.UserID)
	if err != nil {
		slog.Error("got error from repo.GetAlertsByUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return alerts, nil
}

func (s *DemoLedgerService) DeleteAlert(ctx context.Context, chatID, alertID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.DeleteAlert"

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.DeactivateAlert(ctx, account.UserID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.DeactivateAlert", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// CheckAlerts is the scheduler job: it scans active alerts, prices the
// symbols in one batch and notifies the owners of the triggered ones.
// Triggered alerts are deactivated so they fire once.
func (s *DemoLedgerService) CheckAlerts(ctx context.Context, notifier Notifier) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.CheckAlerts"

	alerts, err := s.repo.GetActiveAlerts(ctx)
	if err != nil {
		slog.Error("got error from repo.GetActiveAlerts", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if len(alerts) == 0 {
		return nil
	}

	symbolSet := make(map[string]struct{}, len(alerts))
	symbols := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		if _, ok := symbolSet[alert.Symbol]; !ok {
			symbolSet[alert.Symbol] = struct{}{}
			symbols = append(symbols, alert.Symbol)
		}
	}

	prices, err := s.getPrices(ctx, symbols)
	if err != nil {
		return err
	}

	triggeredIDs := make([]int64, 0, len(alerts))
	for _, alert := range alerts {
		price, ok := prices[alert.Symbol]
		if !ok {
			continue
		}

		if !alertTriggered(alert, price) {
			continue
		}

		if err := notifier.Notify(alert.ChatID, alertMessage(alert, price)); err != nil {
			slog.Error("can't notify user", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", alert.ChatID), slog.String("err", err.Error()))
			continue // не деактивируем, попробуем на следующем проходе
		}

		triggeredIDs = append(triggeredIDs, alert.AlertID)
	}

	if len(triggeredIDs) == 0 {
		return nil
	}

	err = s.repo.DeactivateAlerts(ctx, triggeredIDs)
	if err != nil {
		slog.Error("got error from repo.DeactivateAlerts", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func alertMessage(alert model.Alert, price decimal.Decimal) string {
	return fmt.Sprintf(
		"🔔 Price alert: %s is %s %s, current price $%s",
		alert.Symbol,
		string(alert.Direction),
		alert.Threshold.String(),
		price.String(),
	)
}

func alertTriggered(alert model.Alert, price decimal.Decimal) bool {
	switch alert.Direction {
	case model.AlertAbove:
		return price.GreaterThanOrEqual(alert.Threshold)
	case model.AlertBelow:
		return price.LessThanOrEqual(alert.Threshold)
	}
	return false
}
