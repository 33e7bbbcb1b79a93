package statikd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks responses by HTTP status and cache status.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statikd_requests_total",
			Help: "Total number of responses by HTTP status and cache status",
		},
		[]string{"status", "cache_status"},
	)

	// requestDuration tracks response latency by cache status.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statikd_request_duration_seconds",
			Help:    "Response latency by cache status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache_status"},
	)
)
