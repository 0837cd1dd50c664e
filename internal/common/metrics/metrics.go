// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_queries_total",
			Help: "Citizen queries processed, by outcome",
		},
		[]string{"outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_query_duration_seconds",
			Help:    "Time from query receipt to response assembly",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"outcome"},
	)

	DegradationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_degradations_total",
			Help: "Collaborator failures recovered with a fallback",
		},
		[]string{"code"},
	)

	MatchesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_matches_returned",
			Help:    "Number of primary matches per answered query",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_catalog_lookups_total",
			Help: "Catalog lookups by source and result",
		},
		[]string{"source", "result"},
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_embedding_cache_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
)
