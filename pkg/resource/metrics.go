package resource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts puller activity per resource name. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connects     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	streamErrors *prometheus.CounterVec
	messages     *prometheus.CounterVec
	live         *prometheus.GaugeVec
}

// NewMetrics registers the puller collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"resource"}
	return &Metrics{
		connects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcekit",
			Subsystem: "puller",
			Name:      "connects_total",
			Help:      "Streams opened successfully.",
		}, labels),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcekit",
			Subsystem: "puller",
			Name:      "retries_total",
			Help:      "Reconnect attempts scheduled.",
		}, labels),
		streamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcekit",
			Subsystem: "puller",
			Name:      "stream_errors_total",
			Help:      "Errors recorded on resources.",
		}, labels),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcekit",
			Subsystem: "puller",
			Name:      "messages_total",
			Help:      "Messages delivered to resources.",
		}, labels),
		live: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "resourcekit",
			Subsystem: "puller",
			Name:      "live_streams",
			Help:      "Streams currently open.",
		}, labels),
	}
}

func (m *Metrics) connected(name string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(name).Inc()
	m.live.WithLabelValues(name).Inc()
}

func (m *Metrics) disconnected(name string) {
	if m == nil {
		return
	}
	m.live.WithLabelValues(name).Dec()
}

func (m *Metrics) retry(name string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(name).Inc()
}

func (m *Metrics) failure(name string) {
	if m == nil {
		return
	}
	m.streamErrors.WithLabelValues(name).Inc()
}

func (m *Metrics) message(name string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(name).Inc()
}
