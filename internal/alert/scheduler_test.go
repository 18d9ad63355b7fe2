package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type scriptedRunner struct {
	mu      sync.Mutex
	results []error
	calls   int
	done    chan struct{}
}

func (r *scriptedRunner) RunPass(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls == len(r.results) {
		close(r.done)
	}
	if r.calls <= len(r.results) {
		return 0, r.results[r.calls-1]
	}
	return 0, nil
}

func TestScheduler_RetriesFailedPasses(t *testing.T) {
	runner := &scriptedRunner{
		results: []error{errors.New("locked"), errors.New("locked"), nil},
		done:    make(chan struct{}),
	}

	// a long interval proves that failed passes are retried on the backoff delay
	s := NewScheduler(runner, time.Hour, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not retry failed passes")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 3, runner.calls)
}
