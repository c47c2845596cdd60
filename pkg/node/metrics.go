package node

import (
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts requests and open pull streams. A nil *Metrics records
// nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	pulls    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resourcekit",
			Subsystem: "node",
			Name:      "requests_total",
			Help:      "Requests handled by kind.",
		}, []string{"kind"}),
		pulls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "resourcekit",
			Subsystem: "node",
			Name:      "open_pulls",
			Help:      "Pull streams currently served.",
		}),
	}
}

func (m *Metrics) request(content any) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(api.KindOf(content)).Inc()
}

// pullOpened records an open pull and returns the func that records its end.
func (m *Metrics) pullOpened() func() {
	if m == nil {
		return func() {}
	}
	m.pulls.Inc()
	return m.pulls.Dec
}
