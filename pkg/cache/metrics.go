package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geo_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geo_cache_misses_total",
		Help: "Total number of cache misses",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geo_cache_evictions_total",
		Help: "Total number of entries evicted to stay under the capacity bound",
	})

	cacheKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geo_cache_keys",
		Help: "Current number of cached entries",
	})
)
