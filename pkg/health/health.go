// Package health aggregates provider reachability and cache statistics
// into a composite readiness signal.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoedge/ip-timezone-api/pkg/cache"
	"github.com/geoedge/ip-timezone-api/pkg/geo"
	"github.com/geoedge/ip-timezone-api/pkg/logging"
	"github.com/geoedge/ip-timezone-api/pkg/upstream"
)

// DefaultProbeTimeout bounds the provider reachability probe. Independent
// of the main lookup path's timeout; health probes must answer fast.
const DefaultProbeTimeout = 2 * time.Second

// Status of an individual check or the composite report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ProviderCheck is the result of probing the geolocation provider.
type ProviderCheck struct {
	Status       Status `json:"status"`
	ResponseTime string `json:"responseTime,omitempty"`
	Message      string `json:"message"`
}

// CacheCheck is the result of inspecting the cache store.
type CacheCheck struct {
	Status  Status  `json:"status"`
	Keys    int     `json:"keys"`
	HitRate float64 `json:"hitRate"`
	Message string  `json:"message"`
}

// Report is the composite health status served by the readiness endpoint.
type Report struct {
	Status        Status        `json:"status"`
	Timestamp     string        `json:"timestamp"`
	UptimeSeconds float64       `json:"uptime"`
	Provider      ProviderCheck `json:"geolocationAPI"`
	Cache         CacheCheck    `json:"cache"`
	ResponseTime  string        `json:"responseTime"`
}

// Healthy reports whether the composite status is healthy.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Checker probes the same provider client and cache store the request
// path uses, without sitting on that path.
type Checker struct {
	client       *upstream.Client
	store        *cache.Store[geo.Entry]
	probeTimeout time.Duration
	started      time.Time
	logger       zerolog.Logger
}

// NewChecker creates a health checker over the shared client and store.
func NewChecker(client *upstream.Client, store *cache.Store[geo.Entry]) *Checker {
	return &Checker{
		client:       client,
		store:        store,
		probeTimeout: DefaultProbeTimeout,
		started:      time.Now(),
		logger:       logging.NewLogger("health"),
	}
}

// Check runs both checks and aggregates them. The composite status is
// healthy only when the provider is reachable and the cache responds;
// anything less is degraded.
func (c *Checker) Check(ctx context.Context) Report {
	start := time.Now()

	provider := c.checkProvider(ctx)
	cacheCheck := c.checkCache()

	status := StatusDegraded
	if provider.Status == StatusHealthy && cacheCheck.Status == StatusHealthy {
		status = StatusHealthy
	} else {
		c.logger.Warn().
			Str("provider", string(provider.Status)).
			Str("cache", string(cacheCheck.Status)).
			Msg("Health check degraded")
	}

	return Report{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: time.Since(c.started).Seconds(),
		Provider:      provider,
		Cache:         cacheCheck,
		ResponseTime:  fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
}

// checkProvider probes the provider's bare endpoint under the probe's own
// timeout. A 4xx answer still proves the API is up, so only transport
// failures and 5xx count as unhealthy.
func (c *Checker) checkProvider(ctx context.Context) ProviderCheck {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	_, err := c.client.Fetch(probeCtx, "")
	elapsed := time.Since(start)

	if err != nil && !isClientStatus(err) {
		return ProviderCheck{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("Geolocation API error: %v", err),
		}
	}

	return ProviderCheck{
		Status:       StatusHealthy,
		ResponseTime: fmt.Sprintf("%dms", elapsed.Milliseconds()),
		Message:      "Geolocation API is accessible",
	}
}

func (c *Checker) checkCache() CacheCheck {
	stats := c.store.Stats()
	return CacheCheck{
		Status:  StatusHealthy,
		Keys:    stats.Keys,
		HitRate: stats.HitRate,
		Message: "Cache is operational",
	}
}

// isClientStatus reports whether err is a provider response with a 4xx
// status, 429 included.
func isClientStatus(err error) bool {
	var provErr *upstream.ProviderError
	if !errors.As(err, &provErr) {
		return false
	}
	return provErr.StatusCode >= 400 && provErr.StatusCode < 500
}
