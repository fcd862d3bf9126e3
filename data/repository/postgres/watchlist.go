package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/crypto_demo_bot/data/repository"
	"github.com/KotFed0t/crypto_demo_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/crypto_demo_bot/internal/model"
	"github.com/KotFed0t/crypto_demo_bot/internal/model/dbModel"
	"github.com/KotFed0t/crypto_demo_bot/utils"
	"github.com/jackc/pgx/v5/pgconn"
)

func (r *Postgres) AddToWatchlist(ctx context.Context, userID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO watchlist(user_id, symbol) VALUES($1, $2)`

	slog.Debug("AddToWatchlist start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			slog.Error("AddToWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("AddToWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return repository.ErrAlreadyExists
			}
		}
		return err
	}

	return nil
}

func (r *Postgres) RemoveFromWatchlist(ctx context.Context, userID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		DELETE FROM watchlist
		WHERE user_id = $1
		AND symbol = $2
		`

	slog.Debug("RemoveFromWatchlist start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("RemoveFromWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("RemoveFromWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, symbol)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetWatchlist(ctx context.Context, userID int64) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT symbol FROM watchlist
		WHERE user_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetWatchlist start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query, userID)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}

func (r *Postgres) InsertAlert(ctx context.Context, alert model.Alert) (alertID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertAlert"
	query := `
		INSERT INTO alerts(user_id, symbol, direction, threshold, active, dt_create)
		VALUES($1, $2, $3, $4, true, $5)
		RETURNING alert_id
		`

	slog.Debug("InsertAlert start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("alert", alert))
	defer func() {
		if err != nil {
			slog.Error("InsertAlert failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertAlert completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, alert.UserID, alert.Symbol, string(alert.Direction), alert.Threshold, alert.DtCreate).Scan(&alertID)
	if err != nil {
		return 0, err
	}

	return alertID, nil
}

func (r *Postgres) GetAlertsByUser(ctx context.Context, userID int64) (alerts []model.Alert, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAlertsByUser"
	query := `
		SELECT a.alert_id, a.user_id, ac.chat_id, a.symbol, a.direction, a.threshold, a.active, a.dt_create
		FROM alerts a
		JOIN accounts ac USING(user_id)
		WHERE a.user_id = $1
		AND a.active = true
		ORDER BY a.alert_id
		`

	slog.Debug("GetAlertsByUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAlertsByUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAlertsByUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var alert dbModel.Alert
		err = rows.StructScan(&alert)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, dbConverter.ConvertAlert(alert))
	}

	return alerts, nil
}

func (r *Postgres) GetActiveAlerts(ctx context.Context) (alerts []model.Alert, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetActiveAlerts"
	query := `
		SELECT a.alert_id, a.user_id, ac.chat_id, a.symbol, a.direction, a.threshold, a.active, a.dt_create
		FROM alerts a
		JOIN accounts ac USING(user_id)
		WHERE a.active = true
		`

	slog.Debug("GetActiveAlerts start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetActiveAlerts failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetActiveAlerts completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var alert dbModel.Alert
		err = rows.StructScan(&alert)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, dbConverter.ConvertAlert(alert))
	}

	return alerts, nil
}

func (r *Postgres) DeactivateAlert(ctx context.Context, userID, alertID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeactivateAlert"
	params := map[string]any{
		"userID":  userID,
		"alertID": alertID,
	}
	query := `
		UPDATE alerts
		SET active = false
		WHERE alert_id = $1
		AND user_id = $2
		AND active = true
		`

	slog.Debug("DeactivateAlert start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("DeactivateAlert failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeactivateAlert completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, alertID, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) DeactivateAlerts(ctx context.Context, alertIDs []int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeactivateAlerts"
	query := `
		UPDATE alerts
		SET active = false
		WHERE alert_id = ANY($1)
		`

	slog.Debug("DeactivateAlerts start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("alertIDs", alertIDs))
	defer func() {
		if err != nil {
			slog.Error("DeactivateAlerts failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeactivateAlerts completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, alertIDs)
	if err != nil {
		return err
	}

	return nil
}
