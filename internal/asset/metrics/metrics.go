package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the asset ledger.
type Metrics struct {
	AssetsCreated       prometheus.Counter
	SupplyMinted        prometheus.Counter
	CreateAssetDuration prometheus.Histogram
}

// New registers the asset metrics with reg, or the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		AssetsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_assets_created_total",
			Help: "Total number of assets created",
		}),
		SupplyMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "supplyledger_asset_supply_minted_total",
			Help: "Total units minted across all created assets",
		}),
		CreateAssetDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supplyledger_create_asset_duration_seconds",
			Help:    "Duration of CreateAsset operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordAssetCreated counts a committed asset and its minted supply.
func (m *Metrics) RecordAssetCreated(supply int64) {
	m.AssetsCreated.Inc()
	m.SupplyMinted.Add(float64(supply))
}

// ObserveCreateAsset records the duration of a CreateAsset operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreateAsset(start time.Time) {
	m.CreateAssetDuration.Observe(time.Since(start).Seconds())
}
