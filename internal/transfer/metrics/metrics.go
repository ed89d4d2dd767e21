package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the transfer workflow.
type Metrics struct {
	Proposed        prometheus.Counter
	Resolved        *prometheus.CounterVec
	SettledVolume   prometheus.Counter
	ResolveConflict prometheus.Counter
	ResolveDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Proposed: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_transfers_proposed_total",
			Help: "Total number of transfers proposed",
		}),
		Resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supplyledger_transfers_resolved_total",
			Help: "Total number of transfers resolved by outcome",
		}, []string{"outcome"}),
		SettledVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_transfer_settled_units_total",
			Help: "Total units moved by accepted transfers",
		}),
		ResolveConflict: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_transfer_resolve_conflicts_total",
			Help: "Accept or reject attempts on transfers that were already resolved",
		}),
		ResolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "supplyledger_transfer_resolve_duration_seconds",
			Help:    "Duration of accept and reject operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementProposed() {
	m.Proposed.Inc()
}

// RecordResolved counts a committed resolution. amount is the settled
// quantity for accepted transfers and 0 otherwise.
func (m *Metrics) RecordResolved(outcome string, amount int64) {
	m.Resolved.WithLabelValues(outcome).Inc()
	if amount > 0 {
		m.SettledVolume.Add(float64(amount))
	}
}

func (m *Metrics) IncrementResolveConflict() {
	m.ResolveConflict.Inc()
}

// ObserveResolve records the duration of an accept or reject.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolve(outcome string, start time.Time) {
	m.ResolveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
