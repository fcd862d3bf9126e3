package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KotFed0t/crypto_demo_bot/data/repository"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/shopspring/decimal"
)

type apiKeys struct {
	key    string
	secret string
}

// Memory is an in-process Repository implementation used when postgres is
// disabled and in tests. Mutations are applied in place: WithinTransaction
// only runs the callback, it does not roll anything back. The service
// validates every trade before the first write, so a failed operation never
// leaves a half-applied state here.
type Memory struct {
	mu sync.RWMutex

	accounts   map[int64]model.Account // keyed by userID
	apiKeys    map[int64]apiKeys
	chatToUser map[int64]int64
	positions  map[int64]map[string]model.Position
	txLog      map[int64][]model.Transaction
	watchlist  map[int64]map[string]struct{}
	alerts     map[int64]model.Alert // keyed by alertID

	nextUserID  int64
	nextTxID    int64
	nextAlertID int64
}

func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[int64]model.Account),
		apiKeys:    make(map[int64]apiKeys),
		chatToUser: make(map[int64]int64),
		positions:  make(map[int64]map[string]model.Position),
		txLog:      make(map[int64][]model.Transaction),
		watchlist:  make(map[int64]map[string]struct{}),
		alerts:     make(map[int64]model.Alert),
	}
}

func (m *Memory) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

func (m *Memory) CreateAccount(_ context.Context, chatID int64, startingBalance decimal.Decimal) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chatToUser[chatID]; ok {
		return model.Account{}, repository.ErrAlreadyExists
	}

	m.nextUserID++
	account := model.Account{
		UserID:        m.nextUserID,
		ChatID:        chatID,
		CashBalance:   startingBalance,
		TotalInvested: decimal.Zero,
	}
	m.accounts[account.UserID] = account
	m.chatToUser[chatID] = account.UserID

	return account, nil
}

func (m *Memory) GetAccount(_ context.Context, chatID int64) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.chatToUser[chatID]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return m.accounts[userID], nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, userID int64, cashBalance, totalInvested decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	account.CashBalance = cashBalance
	account.TotalInvested = totalInvested
	m.accounts[userID] = account

	return nil
}

func (m *Memory) SetApiKeys(_ context.Context, userID int64, key, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	m.apiKeys[userID] = apiKeys{key: key, secret: secret}
	account.HasApiKeys = true
	m.accounts[userID] = account

	return nil
}

func (m *Memory) ClearApiKeys(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(m.apiKeys, userID)
	account.HasApiKeys = false
	m.accounts[userID] = account

	return nil
}

func (m *Memory) GetPosition(_ context.Context, userID int64, symbol string) (model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	position, ok := m.positions[userID][symbol]
	if !ok {
		return model.Position{}, repository.ErrNotFound
	}
	return position, nil
}

func (m *Memory) GetPositions(_ context.Context, userID int64) ([]model.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	positions := make([]model.Position, 0, len(m.positions[userID]))
	for _, position := range m.positions[userID] {
		positions = append(positions, position)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return positions, nil
}

func (m *Memory) UpsertPosition(_ context.Context, position model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[position.UserID]; !ok {
		m.positions[position.UserID] = make(map[string]model.Position)
	}
	m.positions[position.UserID][position.Symbol] = position

	return nil
}

func (m *Memory) DeletePosition(_ context.Context, userID int64, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.positions[userID], symbol)

	return nil
}

func (m *Memory) DeletePositions(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.positions, userID)

	return nil
}

func (m *Memory) InsertTransaction(_ context.Context, transaction model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTxID++
	transaction.TransactionID = m.nextTxID
	m.txLog[transaction.UserID] = append(m.txLog[transaction.UserID], transaction)

	return nil
}

func (m *Memory) GetTransactions(_ context.Context, userID int64, limit int) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	transactions := make([]model.Transaction, len(m.txLog[userID]))
	copy(transactions, m.txLog[userID])
	sort.Slice(transactions, func(i, j int) bool { return transactions[i].DtCreate.After(transactions[j].DtCreate) })

	if limit > 0 && limit < len(transactions) {
		transactions = transactions[:limit]
	}

	return transactions, nil
}

func (m *Memory) ArchiveTransactions(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.txLog[userID] {
		m.txLog[userID][i].Archived = true
	}

	return nil
}

func (m *Memory) AddToWatchlist(_ context.Context, userID int64, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watchlist[userID]; !ok {
		m.watchlist[userID] = make(map[string]struct{})
	}
	if _, ok := m.watchlist[userID][symbol]; ok {
		return repository.ErrAlreadyExists
	}
	m.watchlist[userID][symbol] = struct{}{}

	return nil
}

func (m *Memory) RemoveFromWatchlist(_ context.Context, userID int64, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watchlist[userID][symbol]; !ok {
		return repository.ErrNotFound
	}
	delete(m.watchlist[userID], symbol)

	return nil
}

func (m *Memory) GetWatchlist(_ context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.watchlist[userID]))
	for symbol := range m.watchlist[userID] {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return symbols, nil
}

func (m *Memory) InsertAlert(_ context.Context, alert model.Alert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAlertID++
	alert.AlertID = m.nextAlertID
	alert.Active = true
	if alert.DtCreate.IsZero() {
		alert.DtCreate = time.Now()
	}
	m.alerts[alert.AlertID] = alert

	return alert.AlertID, nil
}

func (m *Memory) GetAlertsByUser(_ context.Context, userID int64) ([]model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var alerts []model.Alert
	for _, alert := range m.alerts {
		if alert.UserID == userID && alert.Active {
			alerts = append(alerts, alert)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].AlertID < alerts[j].AlertID })

	return alerts, nil
}

func (m *Memory) GetActiveAlerts(_ context.Context) ([]model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var alerts []model.Alert
	for _, alert := range m.alerts {
		if alert.Active {
			alerts = append(alerts, alert)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].AlertID < alerts[j].AlertID })

	return alerts, nil
}

func (m *Memory) DeactivateAlert(_ context.Context, userID, alertID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[alertID]
	if !ok || alert.UserID != userID || !alert.Active {
		return repository.ErrNotFound
	}
	alert.Active = false
	m.alerts[alertID] = alert

	return nil
}

func (m *Memory) DeactivateAlerts(_ context.Context, alertIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alertID := range alertIDs {
		if alert, ok := m.alerts[alertID]; ok {
			alert.Active = false
			m.alerts[alertID] = alert
		}
	}

	return nil
}
