package alert

import (
	"context"
	"crypto-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// AlertStore is the full alert table used by the command layer
type AlertStore interface {
	Store
	AddAlert(ctx context.Context, chatID, userID int64, symbol string, targetPrice float64) (int64, error)
	ListActiveForUser(ctx context.Context, userID int64) ([]types.Alert, error)
}

// Service is the entry point for the command layer and the scheduler
type Service struct {
	store     AlertStore
	evaluator *Evaluator
}

func NewService(store AlertStore, evaluator *Evaluator) *Service {
	return &Service{
		store:     store,
		evaluator: evaluator,
	}
}

// AddAlert stores a new alert for owner, delivered to destination once symbol reaches targetPrice
func (s *Service) AddAlert(ctx context.Context, owner, destination int64, symbol string, targetPrice float64) (int64, error) {
	id, err := s.store.AddAlert(ctx, destination, owner, symbol, targetPrice)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"alert_id": id,
		"user_id":  owner,
		"symbol":   symbol,
		"target":   targetPrice,
	}).Info("Alert created")
	return id, nil
}

// ListMyAlerts returns the active alerts created by owner
func (s *Service) ListMyAlerts(ctx context.Context, owner int64) ([]types.Alert, error) {
	return s.store.ListActiveForUser(ctx, owner)
}

// DeleteAlert deactivates one of owner's active alerts. Ids that do not belong
// to owner's active alerts yield types.ErrAlertNotFound.
func (s *Service) DeleteAlert(ctx context.Context, owner, id int64) error {
	mine, err := s.store.ListActiveForUser(ctx, owner)
	if err != nil {
		return err
	}

	if !lo.ContainsBy(mine, func(a types.Alert) bool { return a.ID == id }) {
		return errors.Wrapf(types.ErrAlertNotFound, "alert %d", id)
	}

	changed, err := s.store.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		// the checker deactivated it between the listing and now
		log.WithField("alert_id", id).Debug("Alert was already inactive")
	}

	log.WithFields(log.Fields{"alert_id": id, "user_id": owner}).Info("Alert deleted")
	return nil
}

// RunCheckPass runs one check pass and returns the number of notified alerts
func (s *Service) RunCheckPass(ctx context.Context) (int, error) {
	return s.evaluator.RunPass(ctx)
}
