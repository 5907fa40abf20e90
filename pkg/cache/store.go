package cache

import (
	"math"
	"sync"
	"time"
)

// Defaults for geolocation caching: provider data is stable for a day and
// 10k entries keep the store around 20MB.
const (
	DefaultTTL           = 24 * time.Hour
	DefaultMaxKeys       = 10000
	DefaultSweepInterval = 1 * time.Hour
)

// Config holds the store configuration.
type Config struct {
	// DefaultTTL is applied by Set. SetTTL overrides it per entry.
	DefaultTTL time.Duration

	// MaxKeys bounds the number of entries. Inserting beyond the bound
	// evicts the entry closest to expiry.
	MaxKeys int

	// SweepInterval is how often the background sweeper reclaims expired
	// entries. Zero disables the sweeper; expiry stays correct either way
	// because Get checks it on every read.
	SweepInterval time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    DefaultTTL,
		MaxKeys:       DefaultMaxKeys,
		SweepInterval: DefaultSweepInterval,
	}
}

// Stats is a point-in-time snapshot of store effectiveness. Hit and miss
// counters cover the store's lifetime; Flush does not reset them.
type Stats struct {
	// Keys is the current number of entries, expired-but-unswept included.
	Keys int `json:"keys"`

	// Hits and Misses count Get outcomes since the store was created.
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`

	// HitRate is hits/(hits+misses) as a percentage rounded to two
	// decimals, 0 when no lookups happened yet.
	HitRate float64 `json:"hitRate"`
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is a bounded in-memory TTL cache. The zero value is not usable;
// construct with New.
type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	hits    uint64
	misses  uint64

	cfg       Config
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a store and starts its background sweeper when the config
// asks for one. Callers own the lifecycle and should Close the store on
// shutdown.
func New[V any](cfg Config) *Store[V] {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}

	s := &Store[V]{
		cfg:     cfg,
		entries: make(map[string]entry[V]),
		done:    make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go s.sweepLoop(cfg.SweepInterval)
	}

	return s
}

// Get returns the value stored under key. The second return is false if the
// key was never set, was deleted, or has expired. Every call updates the
// hit/miss counters.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		cacheKeys.Set(float64(len(s.entries)))
		ok = false
	}

	if !ok {
		s.misses++
		cacheMisses.Inc()
		var zero V
		return zero, false
	}

	s.hits++
	cacheHits.Inc()
	return e.value, true
}

// Set stores value under key with the default TTL.
func (s *Store[V]) Set(key string, value V) {
	s.SetTTL(key, value, s.cfg.DefaultTTL)
}

// SetTTL stores value under key, expiring ttl from now. Overwriting an
// existing key resets its expiry. Inserting a new key at capacity evicts
// the entry with the nearest expiry first, so the bound always holds.
func (s *Store[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.cfg.MaxKeys {
		s.evictLocked()
	}

	s.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
	cacheKeys.Set(float64(len(s.entries)))
}

// Delete removes key and returns the number of entries removed (0 or 1).
func (s *Store[V]) Delete(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return 0
	}
	delete(s.entries, key)
	cacheKeys.Set(float64(len(s.entries)))
	return 1
}

// Flush removes all entries. Hit and miss counters survive so operators can
// still read lifetime effectiveness after a flush.
func (s *Store[V]) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]entry[V])
	cacheKeys.Set(0)
}

// Len returns the current number of entries.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rate float64
	if total := s.hits + s.misses; total > 0 {
		rate = math.Round(float64(s.hits)/float64(total)*100*100) / 100
	}

	return Stats{
		Keys:    len(s.entries),
		Hits:    s.hits,
		Misses:  s.misses,
		HitRate: rate,
	}
}

// Close stops the background sweeper. The store stays usable afterwards;
// expiry is still enforced by Get.
func (s *Store[V]) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// evictLocked drops expired entries, and if none were expired, the live
// entry closest to expiry. Caller holds s.mu.
func (s *Store[V]) evictLocked() {
	now := time.Now()
	removed := false
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed = true
		}
	}
	if removed {
		return
	}

	var victim string
	var victimExpiry time.Time
	for key, e := range s.entries {
		if victim == "" || e.expiresAt.Before(victimExpiry) {
			victim = key
			victimExpiry = e.expiresAt
		}
	}
	if victim != "" {
		delete(s.entries, victim)
		cacheEvictions.Inc()
	}
}

func (s *Store[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep reclaims expired entries in one pass.
func (s *Store[V]) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	cacheKeys.Set(float64(len(s.entries)))
}
