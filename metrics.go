package explorer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeStale   = "stale"
)

// Metrics holds the explorer's Prometheus collectors.
type Metrics struct {
	Published     *prometheus.CounterVec
	Loads         *prometheus.CounterVec
	TableRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_bus_published_total",
			Help: "Topics published on the change bus",
		}, []string{"topic"}),
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_distribution_loads_total",
			Help: "Distribution loads by outcome",
		}, []string{"outcome"}),
		TableRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "explorer_table_requests_total",
			Help: "Data table fetches by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) load(outcome string) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) table(outcome string) {
	if m == nil {
		return
	}
	m.TableRequests.WithLabelValues(outcome).Inc()
}
