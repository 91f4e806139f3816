package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one Breaker per upstream host.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewRegistry creates an empty registry whose breakers use cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), config: cfg}
}

// Get returns the breaker for host, or nil if none exists yet.
func (r *Registry) Get(host string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[host]
}

// GetOrCreate returns the breaker for host, creating it if needed.
func (r *Registry) GetOrCreate(host string) *Breaker {
	if b := r.Get(host); b != nil {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[host]; ok {
		return b
	}
	b := NewBreaker(r.config)
	r.breakers[host] = b
	return b
}

// States snapshots the state of every known breaker.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for host, b := range r.breakers {
		out[host] = b.State()
	}
	return out
}

// EvictStale removes breakers idle since before cutoff and returns how many went.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for host, b := range r.breakers {
		if b.LastUsed().Before(cutoff) {
			delete(r.breakers, host)
			n++
		}
	}
	return n
}
