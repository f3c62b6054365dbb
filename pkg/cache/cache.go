package cache

import "time"

// Cache is a bounded, TTL-aware store for front-end projections.
// It is never authoritative: callers must tolerate misses and evictions.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found.
	Get(key string) (any, bool)

	// Set stores a value with a TTL. It may be dropped under contention,
	// in which case it returns false.
	Set(key string, value any, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Wait blocks until pending sets are visible to Get.
	Wait()

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}
