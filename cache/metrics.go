package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits tracks cache hits.
	Hits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statikd_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// Misses tracks cache misses, including lazy-expired entries.
	Misses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statikd_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// Evictions tracks removed entries by reason.
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statikd_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"reason"}, // "capacity", "expired", "replaced", "invalidated"
	)

	// SizeBytes tracks the current total of cached content bytes.
	SizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statikd_cache_size_bytes",
			Help: "Current size of cached content in bytes",
		},
	)

	// Items tracks the current number of cached entries.
	Items = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statikd_cache_items",
			Help: "Current number of cache entries",
		},
	)
)
