// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nutrirag"

// Routing pipeline metrics.
var (
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Queries classified, by outcome",
		},
		[]string{"outcome"}, // no_match / single / multi
	)

	RetrievalBudget = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_budget",
			Help:      "Passages requested per domain",
			Buckets:   []float64{1, 3, 5, 8, 10, 12, 15, 20, 30},
		},
		[]string{"domain"},
	)

	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_requests_total",
			Help:      "Per-domain similarity searches",
		},
		[]string{"domain", "status"}, // success / error / timeout
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Per-domain similarity search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"domain"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Chat completion calls",
		},
		[]string{"status"}, // success / error / timeout
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Chat completion duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"result"}, // hit / miss
	)

	SnapshotReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reloads_total",
			Help:      "In-memory index snapshot reloads",
		},
		[]string{"domain", "status"},
	)

	SnapshotPassages = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_passages",
			Help:      "Passages held by each in-memory index",
		},
		[]string{"domain"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			ClassificationsTotal,
			RetrievalBudget,
			RetrievalRequestsTotal,
			RetrievalDuration,
			GenerationRequestsTotal,
			GenerationDuration,
			EmbeddingCacheTotal,
			SnapshotReloadsTotal,
			SnapshotPassages,
		)
	})
}
