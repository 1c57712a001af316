// Package cache stores rendered artifacts between runs.
//
// Rasterizing a mockup and composing its squares are the slow steps of a run.
// Both are pure functions of their inputs, so their outputs are cached under
// content-hash keys built by a [Keyer]:
//
//	c, _ := cache.NewFileCache(dir)
//	key := cache.NewDefaultKeyer().RenderKey(cache.Hash(svg), cache.RenderKeyOpts{Width: 960})
//	if data, ok, _ := c.Get(ctx, key); ok {
//	    return data
//	}
//
// [FileCache] serves the CLI. [RedisCache] and [MongoCache] let several
// preview servers share results. [NullCache] disables caching.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Default time-to-live per artifact kind.
const (
	TTLRender = 7 * 24 * time.Hour
	TTLSquare = 7 * 24 * time.Hour
	TTLIcon   = 24 * time.Hour
)
