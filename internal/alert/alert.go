package alert

import (
	"context"
	"crypto-alert-bot/internal/metrics"
	"crypto-alert-bot/internal/types"
	"crypto-alert-bot/lib/helpers"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Store is the part of the alert table the checker needs
type Store interface {
	ListAllActive(ctx context.Context) ([]types.Alert, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// PriceFetcher resolves a batch of symbols to USD prices. Symbols it cannot
// resolve are absent from the result; a total failure yields an empty map.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbols []string) map[string]float64
}

// Notifier delivers one message to one destination
type Notifier interface {
	Notify(ctx context.Context, destination int64, text string) error
}

// Evaluator runs check passes: it matches active alerts against current
// prices, notifies the owners of triggered alerts and deactivates the alerts
// whose notification was delivered.
type Evaluator struct {
	store    Store
	prices   PriceFetcher
	notifier Notifier
	metrics  *metrics.Metrics

	// only one pass runs at a time per evaluator
	mu sync.Mutex
}

func NewEvaluator(store Store, prices PriceFetcher, notifier Notifier, m *metrics.Metrics) *Evaluator {
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Evaluator{
		store:    store,
		prices:   prices,
		notifier: notifier,
		metrics:  m,
	}
}

// Triggered reports whether the alert fires at the given price. Only the
// upward direction exists: a price at or above the target fires.
func Triggered(a types.Alert, currentPrice float64) bool {
	return currentPrice >= a.TargetPrice
}

// FormatMessage builds the MarkdownV2 notification for a triggered alert
func FormatMessage(symbol string, targetPrice, currentPrice float64) string {
	return fmt.Sprintf(
		"🚨 *Price Alert for %s* 🚨\n\nYour target: *$%s*\nCurrent price: *$%s*",
		helpers.EscapeMarkdownV2(symbol),
		helpers.FormatPriceUS(targetPrice, true),
		helpers.FormatPriceUS(currentPrice, true),
	)
}

// RunPass executes one check pass and returns the number of alerts whose
// notification was delivered. Only storage failures are returned as errors.
func (e *Evaluator) RunPass(ctx context.Context) (notified int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("🔥 Panic recovered in alert checker: %v", r)
			err = errors.Errorf("alert pass panicked: %v", r)
			e.metrics.PassErrors.Inc()
		}
	}()

	e.metrics.Passes.Inc()
	log.Debug("🔄 Checking alerts...")

	alerts, err := e.store.ListAllActive(ctx)
	if err != nil {
		e.metrics.PassErrors.Inc()
		return 0, errors.Wrap(err, "could not load active alerts")
	}
	if len(alerts) == 0 {
		log.Debug("No active alerts to check.")
		return 0, nil
	}

	symbols := lo.Uniq(lo.Map(alerts, func(a types.Alert, _ int) string {
		return a.NormalizedSymbol()
	}))

	prices := e.prices.FetchPrices(ctx, symbols)
	if len(prices) == 0 {
		e.metrics.EmptyLookups.Inc()
		log.WithField("symbols", len(symbols)).Warn("⚠️ Could not fetch any current prices for active alerts")
		return 0, nil
	}

	var delivered []int64
	for _, a := range alerts {
		symbol := a.NormalizedSymbol()
		entry := log.WithFields(log.Fields{
			"alert_id": a.ID,
			"symbol":   symbol,
			"target":   a.TargetPrice,
		})

		currentPrice, ok := prices[symbol]
		if !ok {
			entry.Warn("⚠️ No price data found for symbol, skipping")
			continue
		}

		if !Triggered(a, currentPrice) {
			entry.WithField("current", currentPrice).Debug("Alert not triggered")
			continue
		}
		e.metrics.AlertsTriggered.Inc()

		if err := e.notify(ctx, a.ChatID, FormatMessage(symbol, a.TargetPrice, currentPrice)); err != nil {
			e.metrics.NotificationsFailed.Inc()
			entry.WithError(err).WithField("chat_id", a.ChatID).Error("❌ Failed to send price alert notification")
			continue
		}

		entry.WithField("current", currentPrice).Info("✅ Price alert notification sent")
		delivered = append(delivered, a.ID)
	}

	if err := e.deactivate(ctx, delivered); err != nil {
		e.metrics.PassErrors.Inc()
		return len(delivered), err
	}

	if len(delivered) > 0 {
		log.Infof("Deactivated %d triggered alerts.", len(delivered))
	}
	return len(delivered), nil
}

// notify keeps a misbehaving notifier from taking the rest of the pass down
func (e *Evaluator) notify(ctx context.Context, destination int64, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("notifier panicked: %v", r)
		}
	}()
	return e.notifier.Notify(ctx, destination, text)
}

// deactivate marks every delivered alert as deactivated. Ids that are already
// inactive or gone are skipped silently.
func (e *Evaluator) deactivate(ctx context.Context, ids []int64) error {
	var errs error
	for _, id := range ids {
		changed, err := e.store.Deactivate(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !changed {
			log.WithField("alert_id", id).Debug("Alert was already inactive")
			continue
		}
		e.metrics.AlertsDeactivated.Inc()
	}

	if errs != nil {
		return errors.Wrap(errs, "could not deactivate notified alerts")
	}
	return nil
}
