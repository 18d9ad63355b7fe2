package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySnapshots struct {
	plain   map[string]float64
	labeled map[string]map[string]map[string]float64
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{
		plain:   map[string]float64{},
		labeled: map[string]map[string]map[string]float64{},
	}
}

func (s *memorySnapshots) SaveMetric(_ context.Context, name string, value float64) error {
	s.plain[name] = value
	return nil
}

func (s *memorySnapshots) GetMetric(_ context.Context, name string) (float64, error) {
	return s.plain[name], nil
}

func (s *memorySnapshots) SaveMetricWithLabels(_ context.Context, name, key, value string, v float64) error {
	if s.labeled[name] == nil {
		s.labeled[name] = map[string]map[string]float64{}
	}
	if s.labeled[name][key] == nil {
		s.labeled[name][key] = map[string]float64{}
	}
	s.labeled[name][key][value] = v
	return nil
}

func (s *memorySnapshots) GetMetricsWithLabels(_ context.Context, name string) (map[string]map[string]float64, error) {
	return s.labeled[name], nil
}

func TestObserveMessage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveMessage(1, "")
	m.ObserveMessage(1, "")
	m.ObserveMessage(2, "group")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.MessagesHandled))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChannelsCount))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesPerChannel.WithLabelValues("1", "PrivateChat-1")))
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newMemorySnapshots()

	m := New(prometheus.NewRegistry())
	m.CommandsProcessed.Add(4)
	m.AlertsDeactivated.Add(2)
	m.ObserveMessage(10, "traders")
	require.NoError(t, m.Save(ctx, store))

	restored := New(prometheus.NewRegistry())
	require.NoError(t, restored.Load(ctx, store))

	assert.Equal(t, 4.0, Value(restored.CommandsProcessed))
	assert.Equal(t, 2.0, Value(restored.AlertsDeactivated))
	assert.Equal(t, 1.0, Value(restored.MessagesHandled))
	assert.Equal(t, 1.0, Value(restored.ChannelsCount))
	assert.Equal(t, 1.0, testutil.ToFloat64(restored.MessagesPerChannel.WithLabelValues("10", "traders")))
}
