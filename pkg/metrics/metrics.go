// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SyncRunsTotal tracks reconciliation runs by terminal state.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total reconciliation runs by outcome",
		},
		[]string{"scope", "state"},
	)

	// SyncRunDuration tracks reconciliation run duration.
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"scope"},
	)

	// ConversationsMerged tracks conversations merged during sync.
	ConversationsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_conversations_merged_total",
			Help: "Conversations merged during reconciliation",
		},
		[]string{"scope"},
	)

	// MessagesIndexed tracks messages inserted and indexed.
	MessagesIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_indexed_total",
			Help: "Messages inserted into the store and search index",
		},
	)

	// SearchDuration tracks search query latency.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Full-text search latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"},
	)

	// IndexRebuildsTotal tracks search index rebuilds.
	IndexRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "index_rebuilds_total",
			Help: "Search index rebuilds",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordSyncRun records metrics for a finished reconciliation run.
func RecordSyncRun(scope, state string, duration float64, merged int) {
	SyncRunsTotal.WithLabelValues(scope, state).Inc()
	SyncRunDuration.WithLabelValues(scope).Observe(duration)
	ConversationsMerged.WithLabelValues(scope).Add(float64(merged))
}
