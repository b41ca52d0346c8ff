// Package metrics exposes the Prometheus registry shared by the edge layer.
// All metrics are defined in their respective packages (store, cache,
// ratelimit, deferred, httpapi) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the scrape handler and the metric reference.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers with via promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Store Metrics (pkg/store):
//   - edge_store_operations_total{operation} (Counter): Store calls by operation (get, put, delete, list)
//   - edge_store_errors_total{operation} (Counter): Store calls that failed and were swallowed
//   - edge_store_operation_duration_seconds{operation} (Histogram): Store call latency
//
// Cache Metrics (pkg/cache):
//   - edge_cache_requests_total{result} (Counter): Lookups by hit, stale or miss
//   - edge_cache_writes_total{result} (Counter): Writes by stored, failed, too_large, encode_error, disabled
//   - edge_cache_entry_bytes (Histogram): Stored payload sizes
//   - edge_cache_revalidations_total{result} (Counter): Background recomputes by success, failure, backoff
//   - edge_cache_purged_keys_total (Counter): Keys deleted by purge
//
// Rate Limit Metrics (pkg/ratelimit):
//   - edge_ratelimit_decisions_total{tier, decision} (Counter): Decisions by allowed, rejected, disabled
//
// Deferred Task Metrics (pkg/deferred):
//   - edge_deferred_tasks_total{result} (Counter): Tasks by async, inline, saturated, panic
//   - edge_deferred_tasks_inflight (Gauge): Background tasks currently running
//
// HTTP Metrics (pkg/httpapi):
//   - edge_http_requests_total{route, status} (Counter): Requests by route template and status
//   - edge_http_request_duration_seconds{route} (Histogram): Request latency by route template
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate (stale serves count as hits)
//   sum(rate(edge_cache_requests_total{result=~"hit|stale"}[5m])) /
//   sum(rate(edge_cache_requests_total[5m]))
//
//   # Store Error Rate
//   sum(rate(edge_store_errors_total[5m])) / sum(rate(edge_store_operations_total[5m]))
//
//   # Rejections by Tier
//   sum by (tier) (rate(edge_ratelimit_decisions_total{decision="rejected"}[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(edge_http_request_duration_seconds_bucket[5m]))
