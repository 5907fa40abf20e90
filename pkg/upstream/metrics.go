package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_provider_requests_total",
		Help: "Total provider requests by HTTP status",
	}, []string{"status"})

	providerRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geo_provider_request_duration_seconds",
		Help:    "Provider request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	providerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geo_provider_retries_total",
		Help: "Total retry attempts after rate-limit responses",
	})

	providerRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geo_provider_retry_backoff_seconds",
		Help:    "Backoff duration before retry attempts",
		Buckets: []float64{0.5, 1, 2, 5, 10},
	})

	providerRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geo_provider_retry_exhausted_total",
		Help: "Total lookups that exhausted all retry attempts",
	})
)
