package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Relayed  prometheus.Counter
	Failures prometheus.Counter
	Position prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Relayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_relay_events_total",
			Help: "Total number of ledger events published",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_relay_failures_total",
			Help: "Total number of relay batches that failed and will be retried",
		}),
		Position: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supplyledger_relay_cursor",
			Help: "Sequence number of the last published event",
		}),
	}
}

func (m *Metrics) RecordRelayed(count int, seq uint64) {
	m.Relayed.Add(float64(count))
	m.Position.Set(float64(seq))
}

func (m *Metrics) IncrementFailures() {
	m.Failures.Inc()
}
