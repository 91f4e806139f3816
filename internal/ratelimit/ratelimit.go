// Package ratelimit implements per-client request limiting with lazy-refill
// token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(perMinute int64, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(perMinute),
		max:      float64(perMinute),
		rate:     float64(perMinute) / 60.0,
		lastFill: now,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// take consumes one token if available.
func (b *bucket) take(now time.Time) bool {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// retryAfter returns seconds until one token is available.
func (b *bucket) retryAfter() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.rate
}

// limiter is the bucket of a single client.
type limiter struct {
	mu       sync.Mutex
	bucket   *bucket
	lastUsed time.Time
}

// Registry holds one limiter per client key, all sharing one limit.
type Registry struct {
	rpm int64
	now func() time.Time

	mu       sync.RWMutex
	limiters map[string]*limiter
}

// NewRegistry creates a registry allowing rpm requests per minute per key.
// rpm <= 0 means unlimited.
func NewRegistry(rpm int64) *Registry {
	return &Registry{
		rpm:      rpm,
		now:      time.Now,
		limiters: make(map[string]*limiter),
	}
}

// Allow consumes one request for key.
func (r *Registry) Allow(key string) Result {
	if r.rpm <= 0 {
		return Result{Allowed: true}
	}
	now := r.now()
	l := r.getOrCreate(key, now)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastUsed = now
	if l.bucket.take(now) {
		return Result{Allowed: true, Limit: r.rpm, Remaining: int64(l.bucket.tokens)}
	}
	return Result{Limit: r.rpm, RetryAfterSeconds: l.bucket.retryAfter()}
}

func (r *Registry) getOrCreate(key string, now time.Time) *limiter {
	r.mu.RLock()
	l, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l = &limiter{bucket: newBucket(r.rpm, now), lastUsed: now}
	r.limiters[key] = l
	return l
}

// EvictStale removes limiters not used since cutoff.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
