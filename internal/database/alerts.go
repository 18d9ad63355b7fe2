package database

import (
	"context"
	"crypto-alert-bot/internal/types"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AddAlert saves a new active alert and returns its id
func (d *DB) AddAlert(ctx context.Context, chatID, userID int64, symbol string, targetPrice float64) (int64, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return 0, errors.Wrap(types.ErrValidation, "symbol is required")
	}
	if math.IsNaN(targetPrice) || math.IsInf(targetPrice, 0) || targetPrice <= 0 {
		return 0, errors.Wrapf(types.ErrValidation, "target price must be positive, got %v", targetPrice)
	}

	query := `
	INSERT INTO alerts (chat_id, user_id, symbol, target_price, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?);`

	res, err := d.db.ExecContext(ctx, query, chatID, userID, symbol, targetPrice, types.StatusActive, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alert id: %w", err)
	}

	log.Debugf("Alert inserted successfully: ID: %d, ChatID: %d, UserID: %d, Symbol: %s, Target: %f", id, chatID, userID, symbol, targetPrice)
	return id, nil
}

// ListActiveForUser fetches the active alerts owned by userID, oldest first
func (d *DB) ListActiveForUser(ctx context.Context, userID int64) ([]types.Alert, error) {
	query := `
	SELECT id, symbol, target_price, status, created_at
	FROM alerts
	WHERE user_id = ? AND status = ?
	ORDER BY id;`

	alerts := []types.Alert{}
	if err := d.db.SelectContext(ctx, &alerts, query, userID, types.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to query alerts for user ID %d: %w", userID, err)
	}

	for i := range alerts {
		alerts[i].UserID = userID
	}
	return alerts, nil
}

// ListAllActive fetches every active alert, used by the alert checker
func (d *DB) ListAllActive(ctx context.Context) ([]types.Alert, error) {
	query := `
	SELECT id, chat_id, user_id, symbol, target_price, status
	FROM alerts
	WHERE status = ?
	ORDER BY id;`

	alerts := []types.Alert{}
	if err := d.db.SelectContext(ctx, &alerts, query, types.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	return alerts, nil
}

// GetAlert fetches a single alert regardless of its status
func (d *DB) GetAlert(ctx context.Context, id int64) (types.Alert, error) {
	query := `
	SELECT id, chat_id, user_id, symbol, target_price, status, created_at
	FROM alerts
	WHERE id = ?;`

	var alert types.Alert
	if err := d.db.GetContext(ctx, &alert, query, id); err != nil {
		return types.Alert{}, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	if !alert.Status.Valid() {
		return types.Alert{}, fmt.Errorf("alert %d has unknown status %q", id, alert.Status)
	}
	return alert, nil
}

// Deactivate flips an active alert to deactivated. It reports false without
// an error when the alert does not exist or is no longer active.
func (d *DB) Deactivate(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE alerts SET status = ? WHERE id = ? AND status = ?;`

	res, err := d.db.ExecContext(ctx, query, types.StatusDeactivated, id, types.StatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate alert %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for alert %d: %w", id, err)
	}
	return n > 0, nil
}
