// Package metrics registers the advisor's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Generator metrics
	GeneratorAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_generator_attempts_total",
			Help: "Structured extraction attempts by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: ok, transport_error, unparseable, decode_error
	)

	GeneratorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_generator_fallbacks_total",
			Help: "Extractions that exhausted their retries and used the fallback",
		},
		[]string{"mode"},
	)

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_stage_duration_seconds",
			Help:    "Duration of recommendation pipeline stages",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	CandidatesMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_candidates_matched_total",
			Help: "Candidates that passed the budget matcher",
		},
	)

	CandidatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_candidates_rejected_total",
			Help: "Candidates rejected by the budget matcher",
		},
		[]string{"reason"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_recommendations_total",
			Help: "Completed recommendation runs",
		},
		[]string{"result"}, // matched, no_matches, data_unavailable
	)

	// Registry metrics
	RegistryRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_registry_rows_skipped_total",
			Help: "Registry rows discarded while loading",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_cache_requests_total",
			Help: "Enrichment cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	HistoryPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_history_published_total",
			Help: "Run records handed to the history sink",
		},
		[]string{"outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
