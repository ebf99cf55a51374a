package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SearcherMetrics holds the gauges and counters the four strategy
// families need: a
// per-venue quality-score gauge (fed by pkg/pricefeed's EMA) and
// opportunity counters tagged by strategy and outcome.
type SearcherMetrics struct {
	VenueQualityScore    *prometheus.GaugeVec
	OpportunitiesFound   *prometheus.CounterVec
	OpportunitiesDropped *prometheus.CounterVec
	BundlesIncluded      prometheus.Counter
	BundlesMissed        prometheus.Counter
	BundlesReverted      prometheus.Counter
	SchedulerSkips       *prometheus.CounterVec
}

// NewSearcherMetrics registers the searcher-specific collectors
// against the default Prometheus registry, the same registration
// style as the teacher's initPrometheusMetrics.
func NewSearcherMetrics() *SearcherMetrics {
	return &SearcherMetrics{
		VenueQualityScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mev_searcher_venue_quality_score",
			Help: "EMA accept-ratio quality score per price feed venue",
		}, []string{"exchange"}),
		OpportunitiesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mev_searcher_opportunities_found_total",
			Help: "Opportunities detected, tagged by strategy",
		}, []string{"strategy"}),
		OpportunitiesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mev_searcher_opportunities_dropped_total",
			Help: "Opportunities dropped before a bundle was built, tagged by strategy and reason",
		}, []string{"strategy", "reason"}),
		BundlesIncluded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mev_searcher_bundles_included_total",
			Help: "Bundles observed included on-chain",
		}),
		BundlesMissed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mev_searcher_bundles_missed_total",
			Help: "Bundles not included by their target block expiry",
		}),
		BundlesReverted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mev_searcher_bundles_reverted_total",
			Help: "Bundles that reverted on submission or simulation",
		}),
		SchedulerSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mev_searcher_scheduler_skips_total",
			Help: "Periodic scheduler ticks dropped because the prior invocation was still running",
		}, []string{"task"}),
	}
}

// RecordVenueQuality updates the quality-score gauge for a venue.
func (m *SearcherMetrics) RecordVenueQuality(exchange string, score float64) {
	m.VenueQualityScore.WithLabelValues(exchange).Set(score)
}

// RecordOpportunity increments the found counter for a strategy tag.
func (m *SearcherMetrics) RecordOpportunity(strategyTag string) {
	m.OpportunitiesFound.WithLabelValues(strategyTag).Inc()
}

// RecordDropped increments the dropped counter for a strategy tag and
// reason (e.g. "simulation_below_threshold", "expired", "gas_cap").
func (m *SearcherMetrics) RecordDropped(strategyTag, reason string) {
	m.OpportunitiesDropped.WithLabelValues(strategyTag, reason).Inc()
}

// RecordBundleOutcome increments the appropriate lifecycle counter.
func (m *SearcherMetrics) RecordBundleOutcome(included, missed, reverted bool) {
	switch {
	case included:
		m.BundlesIncluded.Inc()
	case missed:
		m.BundlesMissed.Inc()
	case reverted:
		m.BundlesReverted.Inc()
	}
}
