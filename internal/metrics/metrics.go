// Package metrics holds the Prometheus collectors for the retrieval pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Embedding metrics
	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aidebug_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aidebug_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)

	EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidebug_embed_requests_total",
			Help: "Embedding provider calls",
		},
		[]string{"provider", "status"},
	)

	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidebug_pipeline_runs_total",
			Help: "Retrieval pipeline runs by final status",
		},
		[]string{"status"}, // done, degraded, failed
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aidebug_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"stage"},
	)

	ExternalFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidebug_external_fallbacks_total",
			Help: "External knowledge lookups fired because local evidence was weak",
		},
		[]string{"status"}, // ok, error
	)

	IdempotencyHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidebug_idempotency_hits_total",
			Help: "Requests served from an earlier run with the same idempotency key",
		},
		[]string{"source"}, // inflight, cache, store
	)

	PrefilterModeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidebug_prefilter_mode_total",
			Help: "Prefilter mode chosen by the domain classifier",
		},
		[]string{"mode"},
	)
)
