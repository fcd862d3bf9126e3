package xlsxGenerator

import (
	"testing"
	"time"

	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestGenerateTransactionsReport(t *testing.T) {
	transactions := []model.Transaction{
		{
			Symbol:   "BTC",
			Side:     model.SideBuy,
			Quantity: decimal.RequireFromString("0.1"),
			Price:    decimal.NewFromInt(50000),
			Notional: decimal.NewFromInt(5000),
			DtCreate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			Symbol:   "BTC",
			Side:     model.SideSell,
			Quantity: decimal.RequireFromString("0.1"),
			Price:    decimal.NewFromInt(55000),
			Notional: decimal.NewFromInt(5500),
			Archived: true,
			DtCreate: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		},
	}

	buf, err := New().GenerateTransactionsReport(transactions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("can't open generated file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("can't read rows: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "symbol" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "buy" || rows[2][2] != "sell" {
		t.Errorf("unexpected side column: %v / %v", rows[1], rows[2])
	}
	if rows[2][6] != "TRUE" {
		t.Errorf("expected archived flag in last column, got %v", rows[2])
	}
}

func TestGenerateTransactionsReportEmpty(t *testing.T) {
	buf, err := New().GenerateTransactionsReport(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("can't open generated file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("can't read rows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}
