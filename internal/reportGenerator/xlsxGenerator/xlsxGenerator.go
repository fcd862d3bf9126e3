package xlsxGenerator

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Transactions"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) GenerateTransactionsReport(transactions []model.Transaction) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("err", err.Error()))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return nil, err
	}

	_ = f.SetCellStr(sheetName, "A1", "date")
	_ = f.SetCellStr(sheetName, "B1", "symbol")
	_ = f.SetCellStr(sheetName, "C1", "side")
	_ = f.SetCellStr(sheetName, "D1", "quantity")
	_ = f.SetCellStr(sheetName, "E1", "price")
	_ = f.SetCellStr(sheetName, "F1", "notional")
	_ = f.SetCellStr(sheetName, "G1", "archived")

	if err := f.SetCellStyle(sheetName, "A1", "G1", headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, transaction := range transactions {
		rowNum := i + 2
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), transaction.DtCreate)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), transaction.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), string(transaction.Side))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), transaction.Quantity.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), transaction.Price.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), transaction.Notional.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNum), transaction.Archived)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf, nil
}
