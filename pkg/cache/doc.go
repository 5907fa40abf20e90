// Package cache provides a bounded, in-memory key/value store with
// per-entry TTL expiry and hit/miss accounting.
//
// The store is process-local: entries are lost on restart and there is no
// external backend.
//
// Expiry is enforced lazily on every Get. An optional background sweeper
// reclaims memory held by expired entries that are never read again; it is
// not needed for correctness.
//
// Capacity is enforced on insert. When a new key would exceed MaxKeys, the
// entry closest to expiry is evicted first. Overwrites of existing keys
// never trigger eviction.
//
// Basic usage:
//
//	store := cache.New[string](cache.DefaultConfig())
//	defer store.Close()
//
//	store.Set("geo:8.8.8.8", payload)
//	if v, ok := store.Get("geo:8.8.8.8"); ok {
//		// cache hit
//	}
//
// All operations are safe for concurrent use.
package cache
