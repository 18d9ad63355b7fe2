package alert

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
)

// PassRunner runs a single check pass
type PassRunner interface {
	RunPass(ctx context.Context) (int, error)
}

// Scheduler repeats check passes every interval. A pass that fails on
// storage is retried sooner, with exponential backoff capped at interval.
type Scheduler struct {
	runner   PassRunner
	interval time.Duration
	retry    *backoff.Backoff
}

func NewScheduler(runner PassRunner, interval, minRetry time.Duration) *Scheduler {
	if minRetry > interval {
		minRetry = interval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		retry: &backoff.Backoff{
			Min:    minRetry,
			Max:    interval,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Run blocks until ctx is cancelled. The first pass starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	log.Infof("🚀 Alert service started, checking every %s", s.interval)

	for {
		wait := s.interval

		notified, err := s.runner.RunPass(ctx)
		if err != nil {
			wait = s.retry.Duration()
			log.WithError(err).Errorf("❌ Alert check failed, retrying in %s", wait)
		} else {
			s.retry.Reset()
			log.Debugf("✅ Alert check completed, %d alerts notified", notified)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Alert service stopped")
			return
		case <-timer.C:
		}
	}
}
