package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/data/repository"
	"github.com/KotFed0t/crypto_demo_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/dbModel"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func (r *Postgres) CreateAccount(ctx context.Context, chatID int64, startingBalance decimal.Decimal) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO accounts(chat_id, cash_balance, total_invested)
		VALUES($1, $2, 0)
		RETURNING user_id, chat_id, cash_balance, total_invested, api_key, api_secret, dt_create
		`

	slog.Debug("CreateAccount start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CreateAccount failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateAccount completed", slog.String("rqID", rqID))
		}
	}()

	dbAccount := dbModel.Account{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, chatID, startingBalance).StructScan(&dbAccount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return model.Account{}, repository.ErrAlreadyExists
			}
		}
		return model.Account{}, err
	}

	return dbConverter.ConvertAccount(dbAccount), nil
}

func (r *Postgres) GetAccount(ctx context.Context, chatID int64) (account model.Account, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT user_id, chat_id, cash_balance, total_invested, api_key, api_secret, dt_create
		FROM accounts
		WHERE chat_id = $1
		`

	slog.Debug("GetAccount start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAccount failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAccount completed", slog.String("rqID", rqID))
		}
	}()

	dbAccount := dbModel.Account{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, chatID).StructScan(&dbAccount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, repository.ErrNotFound
		}
		return model.Account{}, err
	}

	return dbConverter.ConvertAccount(dbAccount), nil
}

func (r *Postgres) UpdateAccountBalance(ctx context.Context, userID int64, cashBalance, totalInvested decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateAccountBalance"
	query := `
		UPDATE accounts
		SET cash_balance = $1, total_invested = $2
		WHERE user_id = $3
		`

	slog.Debug("UpdateAccountBalance start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateAccountBalance failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateAccountBalance completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, cashBalance, totalInvested, userID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) SetApiKeys(ctx context.Context, userID int64, apiKey, apiSecret string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SetApiKeys"
	// ключи в лог не пишем
	query := `
		UPDATE accounts
		SET api_key = $1, api_secret = $2
		WHERE user_id = $3
		`

	slog.Debug("SetApiKeys start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("SetApiKeys failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetApiKeys completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, apiKey, apiSecret, userID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) ClearApiKeys(ctx context.Context, userID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ClearApiKeys"
	query := `
		UPDATE accounts
		SET api_key = NULL, api_secret = NULL
		WHERE user_id = $1
		`

	slog.Debug("ClearApiKeys start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("ClearApiKeys failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ClearApiKeys completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetPosition(ctx context.Context, userID int64, symbol string) (position model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPosition"
	query := `
		SELECT user_id, symbol, quantity, avg_cost
		FROM positions
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("GetPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetPosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPosition := dbModel.Position{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, symbol).StructScan(&dbPosition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Position{}, repository.ErrNotFound
		}
		return model.Position{}, err
	}

	return dbConverter.ConvertPosition(dbPosition), nil
}

func (r *Postgres) GetPositions(ctx context.Context, userID int64) (positions []model.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPositions"
	query := `
		SELECT user_id, symbol, quantity, avg_cost
		FROM positions
		WHERE user_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var position dbModel.Position
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, dbConverter.ConvertPosition(position))
	}

	return positions, nil
}

func (r *Postgres) UpsertPosition(ctx context.Context, position model.Position) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertPosition"
	query := `
		INSERT INTO positions(user_id, symbol, quantity, avg_cost)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost
		`

	slog.Debug("UpsertPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("position", position))
	defer func() {
		if err != nil {
			slog.Error("UpsertPosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertPosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, position.UserID, position.Symbol, position.Quantity, position.AvgCost)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) DeletePosition(ctx context.Context, userID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeletePosition"
	params := map[string]any{
		"userID": userID,
		"symbol": symbol,
	}
	query := `
		DELETE FROM positions
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("DeletePosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("DeletePosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeletePosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) DeletePositions(ctx context.Context, userID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeletePositions"
	query := `
		DELETE FROM positions
		WHERE user_id = $1
		`

	slog.Debug("DeletePositions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeletePositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeletePositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) InsertTransaction(ctx context.Context, transaction model.Transaction) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(user_id, symbol, side, quantity, price, notional, dt_create)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Any("transaction", transaction),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		transaction.UserID,
		transaction.Symbol,
		string(transaction.Side),
		transaction.Quantity,
		transaction.Price,
		transaction.Notional,
		transaction.DtCreate,
	)

	if err != nil {
		return err
	}
	return nil
}

func (r *Postgres) GetTransactions(ctx context.Context, userID int64, limit int) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactions"
	params := map[string]any{
		"userID": userID,
		"limit":  limit,
	}
	// limit = 0 means no limit (full history export)
	query := `
		SELECT transaction_id, user_id, symbol, side, quantity, price, notional, archived, dt_create
		FROM transactions
		WHERE user_id = $1
		ORDER BY dt_create DESC
		LIMIT NULLIF($2, 0)
		`

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	transactions = make([]model.Transaction, 0, limit)
	for rows.Next() {
		var transaction dbModel.Transaction
		err = rows.StructScan(&transaction)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(transaction))
	}

	return transactions, nil
}

func (r *Postgres) ArchiveTransactions(ctx context.Context, userID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ArchiveTransactions"
	query := `
		UPDATE transactions
		SET archived = true
		WHERE user_id = $1
		AND archived = false
		`

	slog.Debug("ArchiveTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ArchiveTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ArchiveTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return nil
}
