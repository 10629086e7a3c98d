// Package metrics exposes Prometheus collectors for the environment gateway
// and the recommendation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for source fetches.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeInvalid  = "invalid"
	OutcomeDisabled = "disabled"
)

var (
	// SourceFetchesTotal counts upstream lookups by source, factor and outcome.
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "environment_source_fetches_total",
			Help: "Total number of upstream environment lookups",
		},
		[]string{"source", "factor", "outcome"},
	)

	// SourceFetchDuration tracks upstream lookup latency.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "environment_source_fetch_duration_seconds",
			Help:    "Duration of upstream environment lookups in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// FallbacksTotal counts factors that were replaced by their default value.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "environment_fallbacks_total",
			Help: "Total number of factor values substituted by fallbacks",
		},
		[]string{"factor"},
	)

	// SnapshotCacheTotal counts snapshot cache hits and misses.
	SnapshotCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "environment_snapshot_cache_total",
			Help: "Snapshot cache lookups by result",
		},
		[]string{"result"},
	)

	// RecommendedCrops observes how many crops a recommendation returned.
	RecommendedCrops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crop_recommendation_results",
			Help:    "Number of viable crops per recommendation",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

// RecordSourceFetch records one upstream lookup.
func RecordSourceFetch(source, factor, outcome string, d time.Duration) {
	SourceFetchesTotal.WithLabelValues(source, factor, outcome).Inc()
	if outcome != OutcomeDisabled {
		SourceFetchDuration.WithLabelValues(source).Observe(d.Seconds())
	}
}

// RecordFallback records a fallback substitution.
func RecordFallback(factor string) {
	FallbacksTotal.WithLabelValues(factor).Inc()
}

// RecordSnapshotCache records a cache hit or miss.
func RecordSnapshotCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SnapshotCacheTotal.WithLabelValues(result).Inc()
}

// RecordRecommendation records the size of a recommendation result.
func RecordRecommendation(n int) {
	RecommendedCrops.Observe(float64(n))
}
