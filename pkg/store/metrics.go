package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opGet    = "get"
	opPut    = "put"
	opDelete = "delete"
	opList   = "list"
)

var (
	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_store_operations_total",
			Help: "Total number of key-value store calls",
		},
		[]string{"operation"}, // "get", "put", "delete", "list"
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_store_errors_total",
			Help: "Total number of failed key-value store calls (swallowed)",
		},
		[]string{"operation"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_store_operation_duration_seconds",
			Help:    "Key-value store call latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation"},
	)
)
