package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate limit decisions.
var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_ratelimit_decisions_total",
		Help: "Rate limit decisions by tier",
	}, []string{"tier", "decision"}) // "allowed", "rejected", "disabled"
)
