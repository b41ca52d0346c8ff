package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests tracks handled requests by route template and status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	// HTTPDuration tracks request latency by route template
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
