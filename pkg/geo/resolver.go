// Package geo resolves client IP addresses to geolocation and timezone
// data, shielding the rate-limited provider behind the in-memory cache.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/geoedge/ip-timezone-api/pkg/cache"
	"github.com/geoedge/ip-timezone-api/pkg/ipaddr"
	"github.com/geoedge/ip-timezone-api/pkg/logging"
	"github.com/geoedge/ip-timezone-api/pkg/timeformat"
	"github.com/geoedge/ip-timezone-api/pkg/upstream"
)

// ErrUnavailable is returned when the provider failed terminally and no
// fallback applies. The underlying cause is logged, never exposed.
var ErrUnavailable = errors.New("unable to determine location from IP address")

// timestampLayout renders response generation times with millisecond
// precision, so back-to-back responses remain distinguishable.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is the cacheable slice of a lookup: provider fields mapped to a
// stable shape, with no point-in-time rendering that could go stale.
type Entry struct {
	IP          string  `json:"ip"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	UTCOffset   string  `json:"utcOffset"`
}

// Result is what a caller receives: the cached entry plus renderings
// computed fresh at response time.
type Result struct {
	Entry

	// CurrentTime is "now" rendered in the entry's timezone, recomputed
	// on every call, cache hits included.
	CurrentTime string `json:"currentTime"`

	// Timestamp is the response generation time, ISO-8601.
	Timestamp string `json:"timestamp"`

	// Cached is true iff the entry came from the cache without a
	// provider call.
	Cached bool `json:"cached"`

	// Fallback is true iff this response was served from the fixed
	// development fallback.
	Fallback bool `json:"fallback,omitempty"`
}

// Config holds the resolver configuration.
type Config struct {
	// AllowFallback substitutes the fixed development payload when the
	// provider fails with a non-rate-limit error. Decide once at startup;
	// local development only.
	AllowFallback bool
}

// Resolver orchestrates classification, caching and provider lookups.
// Construct with NewResolver; the cache store and client are injected so
// tests can build isolated instances.
type Resolver struct {
	cache  *cache.Store[Entry]
	client *upstream.Client
	cfg    Config
	logger zerolog.Logger
	group  singleflight.Group
}

// NewResolver creates a resolver on top of an explicit cache store and
// provider client.
func NewResolver(store *cache.Store[Entry], client *upstream.Client, cfg Config) *Resolver {
	return &Resolver{
		cache:  store,
		client: client,
		cfg:    cfg,
		logger: logging.NewLogger("resolver"),
	}
}

// cacheKey derives the cache key for a classified lookup key. Loopback and
// private addresses all share the default bucket.
func cacheKey(lookupKey string) string {
	if lookupKey == "" {
		return "geo:default"
	}
	return "geo:" + lookupKey
}

type fetchOutcome struct {
	entry    Entry
	fallback bool
}

// Resolve maps a raw client IP to geolocation data.
//
// The flow is classify, consult the cache, and on a miss fetch from the
// provider with retry. Rate-limited errors and expired request deadlines
// propagate tagged so the HTTP layer can answer 503 with a Retry-After
// hint; other provider failures are masked by the development fallback
// when enabled, and surface as ErrUnavailable otherwise. Concurrent
// misses for the same key share one provider call.
func (r *Resolver) Resolve(ctx context.Context, rawIP string) (*Result, error) {
	classified := ipaddr.Classify(rawIP)
	key := cacheKey(classified.LookupKey)

	if entry, ok := r.cache.Get(key); ok {
		r.logger.Debug().Str("key", key).Msg("Cache hit")
		return r.buildResult(entry, true, false)
	}

	r.logger.Debug().
		Str("key", key).
		Str("ip", classified.NormalizedIP).
		Str("lookup_key", classified.LookupKey).
		Msg("Cache miss")

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.fetch(ctx, key, classified)
	})
	if err != nil {
		return nil, err
	}

	outcome := v.(fetchOutcome)
	return r.buildResult(outcome.entry, false, outcome.fallback)
}

// fetch performs the provider lookup for one cache key and stores the
// outcome. Runs inside the single-flight group.
func (r *Resolver) fetch(ctx context.Context, key string, classified ipaddr.Classification) (fetchOutcome, error) {
	payload, err := r.client.FetchWithRetry(ctx, classified.LookupKey)
	if err == nil {
		entry := entryFromPayload(payload)
		r.cache.Set(key, entry)
		return fetchOutcome{entry: entry}, nil
	}

	// Rate-limit exhaustion is never cached and never masked; the caller
	// turns it into 503 + Retry-After.
	if errors.Is(err, upstream.ErrRateLimited) {
		return fetchOutcome{}, err
	}

	// An expired or cancelled request deadline is not a provider failure.
	// Propagate it tagged so the HTTP layer answers 503 with a retry hint
	// instead of masking it with the fallback or ErrUnavailable.
	if errors.Is(err, upstream.ErrContextCancelled) {
		return fetchOutcome{}, err
	}
	if ctx.Err() != nil {
		return fetchOutcome{}, fmt.Errorf("%w: %v", upstream.ErrContextCancelled, err)
	}

	if r.cfg.AllowFallback {
		r.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Provider unavailable, serving development fallback")
		r.cache.Set(key, fallbackEntry)
		return fetchOutcome{entry: fallbackEntry, fallback: true}, nil
	}

	r.logger.Error().
		Err(err).
		Str("key", key).
		Str("ip", classified.NormalizedIP).
		Msg("Unable to resolve location")
	return fetchOutcome{}, ErrUnavailable
}

// buildResult renders the per-response fields against an entry.
func (r *Resolver) buildResult(entry Entry, cached, fallback bool) (*Result, error) {
	currentTime, err := timeformat.Render(entry.Timezone)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("timezone", entry.Timezone).
			Msg("Cannot render local time")
		return nil, err
	}

	return &Result{
		Entry:       entry,
		CurrentTime: currentTime,
		Timestamp:   time.Now().UTC().Format(timestampLayout),
		Cached:      cached,
		Fallback:    fallback,
	}, nil
}

// entryFromPayload maps the provider's field names onto the cacheable shape.
func entryFromPayload(p *upstream.Payload) Entry {
	return Entry{
		IP:          p.IP,
		City:        p.City,
		Region:      p.Region,
		Country:     p.CountryName,
		CountryCode: p.CountryCode,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Timezone:    p.Timezone,
		UTCOffset:   p.UTCOffset,
	}
}
