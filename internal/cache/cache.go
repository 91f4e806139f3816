// Package cache provides the in-memory backends: an otter-backed
// frontpage.CacheStorage for the offline layer and a small TTL memo
// used to avoid repeating slow upstream lookups.
package cache

import (
	"context"
	"time"
)

// Memo is a keyed TTL cache of decoded values.
type Memo[V any] interface {
	// Get retrieves a cached value by key.
	Get(ctx context.Context, key string) (V, bool)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, val V, ttl time.Duration)
	// GetOrLoad returns the cached value, calling load on a miss.
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error)
	// Delete removes a cached value.
	Delete(ctx context.Context, key string)
	// Purge removes all cached values.
	Purge(ctx context.Context)
}

var _ Memo[string] = (*Memory[string])(nil)
