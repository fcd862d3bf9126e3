package dbConverter

import (
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/dbModel"
)

func ConvertAccount(dbAccount dbModel.Account) model.Account {
	return model.Account{
		UserID:        dbAccount.UserID,
		ChatID:        dbAccount.ChatID,
		CashBalance:   dbAccount.CashBalance,
		TotalInvested: dbAccount.TotalInvested,
		HasApiKeys:    dbAccount.ApiKey.Valid && dbAccount.ApiSecret.Valid,
	}
}

func ConvertPosition(dbPosition dbModel.Position) model.Position {
	return model.Position{
		UserID:   dbPosition.UserID,
		Symbol:   dbPosition.Symbol,
		Quantity: dbPosition.Quantity,
		AvgCost:  dbPosition.AvgCost,
	}
}

func ConvertTransaction(dbTransaction dbModel.Transaction) model.Transaction {
	return model.Transaction{
		TransactionID: dbTransaction.TransactionID,
		UserID:        dbTransaction.UserID,
		Symbol:        dbTransaction.Symbol,
		Side:          model.Side(dbTransaction.Side),
		Quantity:      dbTransaction.Quantity,
		Price:         dbTransaction.Price,
		Notional:      dbTransaction.Notional,
		Archived:      dbTransaction.Archived,
		DtCreate:      dbTransaction.DtCreate,
	}
}

func ConvertAlert(dbAlert dbModel.Alert) model.Alert {
	return model.Alert{
		AlertID:   dbAlert.AlertID,
		UserID:    dbAlert.UserID,
		ChatID:    dbAlert.ChatID,
		Symbol:    dbAlert.Symbol,
		Direction: model.AlertDirection(dbAlert.Direction),
		Threshold: dbAlert.Threshold,
		Active:    dbAlert.Active,
		DtCreate:  dbAlert.DtCreate,
	}
}
