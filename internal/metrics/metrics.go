package metrics

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "crypto_alert"
	subsystem = "telegram_bot"
)

// Snapshotter persists metric values between restarts
type Snapshotter interface {
	SaveMetric(ctx context.Context, metricName string, value float64) error
	GetMetric(ctx context.Context, metricName string) (float64, error)
	SaveMetricWithLabels(ctx context.Context, metricName, labelKey, labelValue string, value float64) error
	GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error)
}

type Metrics struct {
	CommandsProcessed  prometheus.Counter
	MessagesHandled    prometheus.Counter
	ChannelsCount      prometheus.Gauge
	MessagesPerChannel *prometheus.CounterVec

	Passes              prometheus.Counter
	PassErrors          prometheus.Counter
	EmptyLookups        prometheus.Counter
	AlertsTriggered     prometheus.Counter
	NotificationsFailed prometheus.Counter
	AlertsDeactivated   prometheus.Counter

	channelsSet map[int64]string
	mu          sync.Mutex
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New creates the bot metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsProcessed: counter("commands_processed", "The total number of processed commands"),
		MessagesHandled:   counter("messages_handled", "The total number of handled messages"),
		ChannelsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channels_count",
			Help:      "The current number of unique channels the bot is operating in",
		}),
		MessagesPerChannel: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_per_channel",
				Help:      "The total number of messages handled per channel",
			},
			[]string{"chat_id", "chat_name"},
		),

		Passes:              counter("alert_passes", "The total number of alert check passes"),
		PassErrors:          counter("alert_pass_errors", "The total number of alert check passes aborted by a storage error"),
		EmptyLookups:        counter("alert_empty_price_lookups", "Passes that ended because no prices could be fetched"),
		AlertsTriggered:     counter("alerts_triggered", "Alerts whose target price was reached"),
		NotificationsFailed: counter("alert_notifications_failed", "Alert notifications that could not be delivered"),
		AlertsDeactivated:   counter("alerts_deactivated", "Alerts deactivated after a delivered notification"),

		channelsSet: make(map[int64]string),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.MessagesHandled,
		m.ChannelsCount,
		m.MessagesPerChannel,
		m.Passes,
		m.PassErrors,
		m.EmptyLookups,
		m.AlertsTriggered,
		m.NotificationsFailed,
		m.AlertsDeactivated,
	)

	return m
}

// ObserveMessage counts a handled message and remembers the channel it came from
func (m *Metrics) ObserveMessage(chatID int64, chatName string) {
	if chatName == "" {
		chatName = fmt.Sprintf("%s-%d", "PrivateChat", chatID)
	}

	m.MessagesHandled.Inc()
	m.MessagesPerChannel.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.channelsSet[chatID]; !exists {
		m.channelsSet[chatID] = chatName
		m.ChannelsCount.Set(float64(len(m.channelsSet)))
	}
}

// persisted lists the plain counters restored on start and saved on shutdown
func (m *Metrics) persisted() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"commands_processed":         m.CommandsProcessed,
		"messages_handled":           m.MessagesHandled,
		"alert_passes":               m.Passes,
		"alert_pass_errors":          m.PassErrors,
		"alert_empty_price_lookups":  m.EmptyLookups,
		"alerts_triggered":           m.AlertsTriggered,
		"alert_notifications_failed": m.NotificationsFailed,
		"alerts_deactivated":         m.AlertsDeactivated,
	}
}

// Load restores counters from the last saved snapshot
func (m *Metrics) Load(ctx context.Context, store Snapshotter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.persisted() {
		value, err := store.GetMetric(ctx, name)
		if err != nil {
			return err
		}
		c.Add(value)
	}

	perChannel, err := store.GetMetricsWithLabels(ctx, "messages_per_channel")
	if err != nil {
		return err
	}
	for chatIDStr, names := range perChannel {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Warnf("Failed to parse chatID %s: %v", chatIDStr, err)
			continue
		}
		for chatName, value := range names {
			m.MessagesPerChannel.WithLabelValues(chatIDStr, chatName).Add(value)
			m.channelsSet[chatID] = chatName
		}
	}
	m.ChannelsCount.Set(float64(len(m.channelsSet)))

	log.Debug("Metrics loaded from database.")
	return nil
}

// Save writes the current counter values to store
func (m *Metrics) Save(ctx context.Context, store Snapshotter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.persisted() {
		if err := store.SaveMetric(ctx, name, Value(c)); err != nil {
			return err
		}
	}
	if err := store.SaveMetric(ctx, "channels_count", float64(len(m.channelsSet))); err != nil {
		return err
	}

	metricChan := make(chan prometheus.Metric)
	go func() {
		m.MessagesPerChannel.Collect(metricChan)
		close(metricChan)
	}()

	var saveErr error
	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Warnf("Failed to read MessagesPerChannel metric: %v", err)
			continue
		}
		var chatID, chatName string
		for _, label := range metricProto.Label {
			switch label.GetName() {
			case "chat_id":
				chatID = label.GetValue()
			case "chat_name":
				chatName = label.GetValue()
			}
		}
		if saveErr != nil {
			continue // drain the channel so the collector goroutine exits
		}
		saveErr = store.SaveMetricWithLabels(ctx, "messages_per_channel", chatID, chatName, metricProto.Counter.GetValue())
	}

	if saveErr != nil {
		return saveErr
	}
	log.Debug("Metrics saved to database.")
	return nil
}

// Value reads the current value of a single counter or gauge
func Value(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	m, ok := <-metricChan
	if !ok {
		return 0
	}

	metricProto := &dto.Metric{}
	if err := m.Write(metricProto); err != nil {
		log.Warnf("Failed to read metric value: %v", err)
		return 0
	}

	switch {
	case metricProto.Counter != nil:
		return metricProto.Counter.GetValue()
	case metricProto.Gauge != nil:
		return metricProto.Gauge.GetValue()
	}
	return 0
}
