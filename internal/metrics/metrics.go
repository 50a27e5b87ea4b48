// Package metrics exposes Prometheus collectors for refresh runs and cache
// freshness.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mstavrou/macrodash/internal/domain"
	"github.com/mstavrou/macrodash/internal/refresh"
)

// Metrics holds the collectors. Implements refresh.MetricsRecorder.
type Metrics struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	tierOutcomes  *prometheus.CounterVec
	seriesFetched prometheus.Counter
	cacheAge      *prometheus.GaugeVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "macrodash_refresh_runs_total",
			Help: "Completed refresh runs, partitioned by whether any tier failed.",
		}, []string{"result"}),
		tierOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "macrodash_refresh_tier_outcomes_total",
			Help: "Per-tier refresh outcomes.",
		}, []string{"frequency", "outcome"}),
		seriesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "macrodash_refresh_series_fetched_total",
			Help: "Series successfully fetched from providers.",
		}),
		cacheAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "macrodash_cache_age_seconds",
			Help: "Age of each tier's cache entry at last observation.",
		}, []string{"frequency"}),
	}

	m.registry.MustRegister(m.runsTotal, m.tierOutcomes, m.seriesFetched, m.cacheAge)
	return m
}

// TierOutcome counts one tier outcome.
func (m *Metrics) TierOutcome(freq domain.Frequency, outcome refresh.Outcome) {
	m.tierOutcomes.WithLabelValues(freq.String(), outcome.String()).Inc()
}

// SeriesFetched counts successfully fetched series.
func (m *Metrics) SeriesFetched(count int) {
	m.seriesFetched.Add(float64(count))
}

// RunCompleted counts a finished run.
func (m *Metrics) RunCompleted(failedTiers int) {
	result := "ok"
	if failedTiers > 0 {
		result = "degraded"
	}
	m.runsTotal.WithLabelValues(result).Inc()
}

// ObserveCacheAge records the current age of a tier's entry.
func (m *Metrics) ObserveCacheAge(freq domain.Frequency, ageSeconds float64) {
	m.cacheAge.WithLabelValues(freq.String()).Set(ageSeconds)
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
