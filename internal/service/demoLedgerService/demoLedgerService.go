package demoLedgerService

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/KotFed0t/crypto_demo_bot/config"
	"github.com/KotFed0t/crypto_demo_bot/data/repository"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/service"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/shopspring/decimal"
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	CreateAccount(ctx context.Context, chatID int64, startingBalance decimal.Decimal) (model.Account, error)
	GetAccount(ctx context.Context, chatID int64) (model.Account, error)
	UpdateAccountBalance(ctx context.Context, userID int64, cashBalance, totalInvested decimal.Decimal) error
	SetApiKeys(ctx context.Context, userID int64, apiKey, apiSecret string) error
	ClearApiKeys(ctx context.Context, userID int64) error

	GetPosition(ctx context.Context, userID int64, symbol string) (model.Position, error)
	GetPositions(ctx context.Context, userID int64) ([]model.Position, error)
	UpsertPosition(ctx context.Context, position model.Position) error
	DeletePosition(ctx context.Context, userID int64, symbol string) error
	DeletePositions(ctx context.Context, userID int64) error

	InsertTransaction(ctx context.Context, transaction model.Transaction) error
	GetTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
	ArchiveTransactions(ctx context.Context, userID int64) error

	AddToWatchlist(ctx context.Context, userID int64, symbol string) error
	RemoveFromWatchlist(ctx context.Context, userID int64, symbol string) error
	GetWatchlist(ctx context.Context, userID int64) ([]string, error)

	InsertAlert(ctx context.Context, alert model.Alert) (alertID int64, err error)
	GetAlertsByUser(ctx context.Context, userID int64) ([]model.Alert, error)
	GetActiveAlerts(ctx context.Context) ([]model.Alert, error)
	DeactivateAlert(ctx context.Context, userID, alertID int64) error
	DeactivateAlerts(ctx context.Context, alertIDs []int64) error
}

type Cache interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
	SetPrices(ctx context.Context, prices map[string]decimal.Decimal) error
}

type MarketApi interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

type ReportGenerator interface {
	GenerateTransactionsReport(transactions []model.Transaction) (*bytes.Buffer, error)
}

type Notifier interface {
	Notify(chatID int64, message string) error
}

var symbolRe = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

type DemoLedgerService struct {
	cfg             *config.Config
	repo            Repository
	cache           Cache
	marketApi       MarketApi
	reportGenerator ReportGenerator
	startingBalance decimal.Decimal

	// buy/sell/reset для одного пользователя выполняем строго последовательно
	muUserLocks sync.Mutex
	userLocks   map[int64]*sync.Mutex
}

func New(cfg *config.Config, repo Repository, cache Cache, marketApi MarketApi, reportGenerator ReportGenerator) *DemoLedgerService {
	startingBalance, err := decimal.NewFromString(cfg.Demo.StartingBalance)
	if err != nil {
		slog.Error("invalid DEMO_STARTING_BALANCE, falling back to 10000", slog.String("err", err.Error()))
		startingBalance = decimal.NewFromInt(10000)
	}

	return &DemoLedgerService{
		cfg:             cfg,
		repo:            repo,
		cache:           cache,
		marketApi:       marketApi,
		reportGenerator: reportGenerator,
		startingBalance: startingBalance,
		userLocks:       make(map[int64]*sync.Mutex),
	}
}

func (s *DemoLedgerService) lockUser(chatID int64) func() {
	s.muUserLocks.Lock()
	lock, ok := s.userLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[chatID] = lock
	}
	s.muUserLocks.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *DemoLedgerService) StartingBalance() decimal.Decimal {
	return s.startingBalance
}

// GetOrCreateAccount lazily creates the account with the starting balance on
// first interaction.
func (s *DemoLedgerService) GetOrCreateAccount(ctx context.Context, chatID int64) (model.Account, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.GetOrCreateAccount"

	account, err := s.repo.GetAccount(ctx, chatID)
	if err == nil {
		return account, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		slog.Error("got error from repo.GetAccount", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Account{}, err
	}

	account, err = s.repo.CreateAccount(ctx, chatID, s.startingBalance)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return s.repo.GetAccount(ctx, chatID)
		}
		slog.Error("got error from repo.CreateAccount", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Account{}, err
	}

	return account, nil
}

func validateTrade(symbol string, quantity decimal.Decimal) error {
	if !symbolRe.MatchString(symbol) {
		return service.ErrInvalidInput
	}
	if !quantity.IsPositive() {
		return service.ErrInvalidInput
	}
	return nil
}

// Buy executes a demo buy: cash is debited by quantity*price, the position
// average cost is recalculated as a volume-weighted mean and a buy transaction
// is appended. Price == nil means "at the current market price".
// Account, position and transaction are written in one DB transaction.
func (s *DemoLedgerService) Buy(ctx context.Context, chatID int64, symbol string, quantity decimal.Decimal, price *decimal.Decimal) (res model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.Buy"

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if err = validateTrade(symbol, quantity); err != nil {
		return model.TradeResult{}, err
	}

	execPrice, err := s.resolveExecPrice(ctx, symbol, price)
	if err != nil {
		return model.TradeResult{}, err
	}

	if !execPrice.IsPositive() {
		return model.TradeResult{}, service.ErrInvalidInput
	}

	unlock := s.lockUser(chatID)
	defer unlock()

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return model.TradeResult{}, err
	}

	cost := quantity.Mul(execPrice)
	if cost.GreaterThan(account.CashBalance) {
		return model.TradeResult{}, &service.InsufficientFundsError{Shortfall: cost.Sub(account.CashBalance)}
	}

	position, err := s.repo.GetPosition(ctx, account.UserID, symbol)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("got error from repo.GetPosition", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeResult{}, err
	}

	// средневзвешенная цена: (oldQty*oldAvg + qty*price) / (oldQty + qty)
	newQuantity := position.Quantity.Add(quantity)
	newAvgCost := position.Quantity.Mul(position.AvgCost).Add(cost).Div(newQuantity)

	updatedPosition := model.Position{
		UserID:   account.UserID,
		Symbol:   symbol,
		Quantity: newQuantity,
		AvgCost:  newAvgCost,
	}

	transaction := model.Transaction{
		UserID:   account.UserID,
		Symbol:   symbol,
		Side:     model.SideBuy,
		Quantity: quantity,
		Price:    execPrice,
		Notional: cost,
		DtCreate: time.Now(),
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateAccountBalance(ctx, account.UserID, account.CashBalance.Sub(cost), account.TotalInvested.Add(cost)); err != nil {
			return err
		}
		if err := s.repo.UpsertPosition(ctx, updatedPosition); err != nil {
			return err
		}
		return s.repo.InsertTransaction(ctx, transaction)
	})
	if err != nil {
		slog.Error("buy transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeResult{}, err
	}

	return model.TradeResult{
		Symbol:      symbol,
		Side:        model.SideBuy,
		Quantity:    quantity,
		Price:       execPrice,
		Notional:    cost,
		CashBalance: account.CashBalance.Sub(cost),
		Position:    updatedPosition,
	}, nil
}

// Sell executes a demo sell: proceeds are credited, realized P&L is computed
// against the position average cost, the position is removed when quantity
// hits exactly zero. Average cost never changes on a sell.
func (s *DemoLedgerService) Sell(ctx context.Context, chatID int64, symbol string, quantity decimal.Decimal, price *decimal.Decimal) (res model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.Sell"

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if err = validateTrade(symbol, quantity); err != nil {
		return model.TradeResult{}, err
	}

	execPrice, err := s.resolveExecPrice(ctx, symbol, price)
	if err != nil {
		return model.TradeResult{}, err
	}

	if !execPrice.IsPositive() {
		return model.TradeResult{}, service.ErrInvalidInput
	}

	unlock := s.lockUser(chatID)
	defer unlock()

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return model.TradeResult{}, err
	}

	position, err := s.repo.GetPosition(ctx, account.UserID, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TradeResult{}, &service.InsufficientHoldingsError{Shortfall: quantity}
		}
		slog.Error("got error from repo.GetPosition", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeResult{}, err
	}

	if position.Quantity.LessThan(quantity) {
		return model.TradeResult{}, &service.InsufficientHoldingsError{Shortfall: quantity.Sub(position.Quantity)}
	}

	proceeds := quantity.Mul(execPrice)
	costBasis := quantity.Mul(position.AvgCost)
	realizedPnl := proceeds.Sub(costBasis)

	remaining := position.Quantity.Sub(quantity)
	positionClosed := remaining.IsZero()

	updatedPosition := model.Position{
		UserID:   account.UserID,
		Symbol:   symbol,
		Quantity: remaining,
		AvgCost:  position.AvgCost,
	}

	// notional храним положительным и для продаж, направление задаёт side
	transaction := model.Transaction{
		UserID:   account.UserID,
		Symbol:   symbol,
		Side:     model.SideSell,
		Quantity: quantity,
		Price:    execPrice,
		Notional: proceeds,
		DtCreate: time.Now(),
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateAccountBalance(ctx, account.UserID, account.CashBalance.Add(proceeds), account.TotalInvested); err != nil {
			return err
		}
		if positionClosed {
			if err := s.repo.DeletePosition(ctx, account.UserID, symbol); err != nil {
				return err
			}
		} else {
			if err := s.repo.UpsertPosition(ctx, updatedPosition); err != nil {
				return err
			}
		}
		return s.repo.InsertTransaction(ctx, transaction)
	})
	if err != nil {
		slog.Error("sell transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeResult{}, err
	}

	return model.TradeResult{
		Symbol:         symbol,
		Side:           model.SideSell,
		Quantity:       quantity,
		Price:          execPrice,
		Notional:       proceeds,
		RealizedPnl:    realizedPnl,
		CashBalance:    account.CashBalance.Add(proceeds),
		Position:       updatedPosition,
		PositionClosed: positionClosed,
	}, nil
}

func (s *DemoLedgerService) GetBalance(ctx context.Context, chatID int64) (model.Account, error) {
	return s.GetOrCreateAccount(ctx, chatID)
}

// GetPortfolio values open positions with current market prices. Symbols the
// price lookup couldn't resolve end up in Valuation.Unpriced.
func (s *DemoLedgerService) GetPortfolio(ctx context.Context, chatID int64) (model.Valuation, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.GetPortfolio"

	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("GetPortfolio finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return model.Valuation{}, err
	}

	positions, err := s.repo.GetPositions(ctx, account.UserID)
	if err != nil {
		slog.Error("got error from repo.GetPositions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Valuation{}, err
	}

	symbols := make([]string, 0, len(positions))
	for _, position := range positions {
		symbols = append(symbols, position.Symbol)
	}

	prices, err := s.getPrices(ctx, symbols)
	if err != nil {
		return model.Valuation{}, err
	}

	return model.Valuate(account, positions, prices, s.startingBalance), nil
}

func (s *DemoLedgerService) GetHistory(ctx context.Context, chatID int64, limit int) ([]model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.GetHistory"

	if limit <= 0 {
		limit = s.cfg.Demo.HistoryLimit
	}

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.repo.GetTransactions(ctx, account.UserID, limit)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return transactions, nil
}

// Reset restores the starting cash balance, clears open positions and marks
// the existing transactions archived. Nothing is physically deleted from the
// transaction log.
func (s *DemoLedgerService) Reset(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.Reset"

	slog.Debug("Reset start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Reset finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	unlock := s.lockUser(chatID)
	defer unlock()

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateAccountBalance(ctx, account.UserID, s.startingBalance, decimal.Zero); err != nil {
			return err
		}
		if err := s.repo.DeletePositions(ctx, account.UserID); err != nil {
			return err
		}
		return s.repo.ArchiveTransactions(ctx, account.UserID)
	})
	if err != nil {
		slog.Error("reset transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *DemoLedgerService) ExportHistory(ctx context.Context, chatID int64) (*bytes.Buffer, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.ExportHistory"

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return nil, err
	}

	// в выгрузку идёт вся история, включая архив
	transactions, err := s.repo.GetTransactions(ctx, account.UserID, 0)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	report, err := s.reportGenerator.GenerateTransactionsReport(transactions)
	if err != nil {
		slog.Error("got error from reportGenerator", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return report, nil
}

func (s *DemoLedgerService) SaveApiKeys(ctx context.Context, chatID int64, apiKey, apiSecret string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.SaveApiKeys"

	if apiKey == "" || apiSecret == "" {
		return service.ErrInvalidInput
	}

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.SetApiKeys(ctx, account.UserID, apiKey, apiSecret)
	if err != nil {
		slog.Error("got error from repo.SetApiKeys", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *DemoLedgerService) DisconnectApi(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DemoLedgerService.DisconnectApi"

	account, err := s.GetOrCreateAccount(ctx, chatID)
	if err != nil {
		return err
	}

	err = s.repo.ClearApiKeys(ctx, account.UserID)
	if err != nil {
		slog.Error("got error from repo.ClearApiKeys", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *DemoLedgerService) resolveExecPrice(ctx context.Context, symbol string, price *decimal.Decimal) (decimal.Decimal, error) {
	if price != nil {
		return *price, nil
	}
	return s.GetPrice(ctx, symbol)
}
