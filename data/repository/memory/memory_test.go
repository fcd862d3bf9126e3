package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/crypto_demo_bot/data/repository"
	"github.com/KotFed0t/crypto_demo_bot/data/repository/memory"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/shopspring/decimal"
)

func TestCreateAccount(t *testing.T) {
	repo := memory.NewMemory()
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, 42, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.UserID == 0 {
		t.Error("expected userID to be assigned")
	}

	_, err = repo.CreateAccount(ctx, 42, decimal.NewFromInt(10000))
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := repo.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != account.UserID {
		t.Errorf("expected userID %d, got %d", account.UserID, got.UserID)
	}

	_, err = repo.GetAccount(ctx, 99)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown chat, got %v", err)
	}
}

func TestGetTransactionsOrderAndLimit(t *testing.T) {
	repo := memory.NewMemory()
	ctx := context.Background()

	account, err := repo.CreateAccount(ctx, 42, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Now()
	for i := 0; i < 5; i++ {
		err := repo.InsertTransaction(ctx, model.Transaction{
			UserID:   account.UserID,
			Symbol:   "BTC",
			Side:     model.SideBuy,
			Quantity: decimal.NewFromInt(1),
			Price:    decimal.NewFromInt(int64(100 + i)),
			Notional: decimal.NewFromInt(int64(100 + i)),
			DtCreate: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("insert #%d: %v", i, err)
		}
	}

	transactions, err := repo.GetTransactions(ctx, account.UserID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(transactions))
	}
	// новые первыми
	if !transactions[0].Price.Equal(decimal.NewFromInt(104)) {
		t.Errorf("expected newest transaction first, got price %s", transactions[0].Price)
	}

	all, err := repo.GetTransactions(ctx, account.UserID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("limit 0 must return the full history, got %d", len(all))
	}
}

func TestArchiveTransactions(t *testing.T) {
	repo := memory.NewMemory()
	ctx := context.Background()

	account, _ := repo.CreateAccount(ctx, 42, decimal.NewFromInt(10000))
	_ = repo.InsertTransaction(ctx, model.Transaction{UserID: account.UserID, Symbol: "BTC", Side: model.SideBuy, DtCreate: time.Now()})

	if err := repo.ArchiveTransactions(ctx, account.UserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transactions, _ := repo.GetTransactions(ctx, account.UserID, 0)
	if len(transactions) != 1 || !transactions[0].Archived {
		t.Errorf("expected archived transaction, got %+v", transactions)
	}
}

func TestPositions(t *testing.T) {
	repo := memory.NewMemory()
	ctx := context.Background()

	account, _ := repo.CreateAccount(ctx, 42, decimal.NewFromInt(10000))

	position := model.Position{UserID: account.UserID, Symbol: "BTC", Quantity: decimal.NewFromInt(1), AvgCost: decimal.NewFromInt(50000)}
	if err := repo.UpsertPosition(ctx, position); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetPosition(ctx, account.UserID, "BTC")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Quantity.Equal(position.Quantity) {
		t.Errorf("expected quantity %s, got %s", position.Quantity, got.Quantity)
	}

	if err := repo.DeletePosition(ctx, account.UserID, "BTC"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetPosition(ctx, account.UserID, "BTC"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
