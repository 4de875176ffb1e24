// Package cache stores routed layouts between runs.
//
// Backends share the [Cache] interface:
//
//   - [FileCache] keeps entries as files for single-machine CLI use.
//   - [RedisCache] shares entries between machines in batch deployments.
//   - [MemoryCache] keeps entries in process, mostly for tests.
//   - [NullCache] disables caching.
//
// Keys come from a [Keyer] so callers never build key strings by hand.
// A layout key hashes the design and the configuration, so any change to
// either misses.
package cache

import (
	"context"
	"time"
)

// LayoutTTL is the default lifetime of a cached layout.
const LayoutTTL = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the entry for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
