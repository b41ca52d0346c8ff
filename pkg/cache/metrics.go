package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests tracks lookups by result
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_requests_total",
			Help: "Total number of edge cache lookups",
		},
		[]string{"result"}, // "hit", "stale", "miss"
	)

	// CacheWrites tracks entry writes by outcome
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_writes_total",
			Help: "Total number of edge cache writes",
		},
		[]string{"result"}, // "stored", "failed", "too_large", "encode_error", "disabled"
	)

	// CacheEntryBytes tracks stored payload sizes
	CacheEntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edge_cache_entry_bytes",
			Help:    "Size of stored edge cache payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// Revalidations tracks background recomputes of stale entries
	Revalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_cache_revalidations_total",
			Help: "Total number of background revalidations",
		},
		[]string{"result"}, // "success", "failure", "backoff"
	)

	// PurgedKeys tracks keys deleted by purge requests
	PurgedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_cache_purged_keys_total",
			Help: "Total number of keys deleted by purge",
		},
	)
)
