package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	// CacheHits counts cache hits by lookup path (query, request_id).
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cache_hits_total",
		Help: "Total cache hits by lookup path",
	}, []string{"path"})

	// CacheMisses counts cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_misses_total",
		Help: "Total cache misses",
	})

	// CacheErrors counts backend errors by operation. Errors are absorbed
	// (reads degrade to misses), so this counter is the only place they
	// remain visible besides the logs.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cache_errors_total",
		Help: "Total cache backend errors by operation",
	}, []string{"operation"})

	// CacheClearedKeys counts keys removed by Clear.
	CacheClearedKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_cleared_keys_total",
		Help: "Total keys removed by cache clear operations",
	})
)
