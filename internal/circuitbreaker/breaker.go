// Package circuitbreaker tracks the failure rate of each upstream host and
// short-circuits network attempts to hosts that keep failing, so the offline
// fallback answers immediately instead of after a full timeout.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every attempt through.
	StateClosed State = iota
	// StateOpen rejects every attempt until the open timeout elapses.
	StateOpen
	// StateHalfOpen lets a single trial through.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate that trips the breaker
	MinSamples     int           // attempts required in the window before tripping
	WindowSeconds  int           // sliding window length, 1..60
	OpenTimeout    time.Duration // time spent OPEN before a trial is allowed
}

// DefaultConfig returns defaults tuned for LAN services polled every few seconds.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.5,
		MinSamples:     5,
		WindowSeconds:  30,
		OpenTimeout:    15 * time.Second,
	}
}

// Breaker is the state machine for one upstream host.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	window   window
	openedAt time.Time
	lastUsed time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg, window: newWindow(cfg.WindowSeconds), now: time.Now}
	b.lastUsed = b.now()
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether an attempt may proceed. In OPEN it flips to
// HALF_OPEN once the timeout has passed and admits the caller as the trial.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.lastUsed = now

	switch b.state {
	case StateOpen:
		if now.Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful attempt; a successful trial closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.lastUsed = now
	b.window.record(0, now)
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.window.reset()
	}
}

// RecordError records a failed attempt with the given weight (see ClassifyError).
func (b *Breaker) RecordError(weight float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.lastUsed = now
	b.window.record(weight, now)

	switch b.state {
	case StateClosed:
		rate, n := b.window.rate(now)
		if n >= b.cfg.MinSamples && rate >= b.cfg.ErrorThreshold {
			b.trip(now)
		}
	case StateHalfOpen:
		b.trip(now)
	}
}

func (b *Breaker) trip(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.probing = false
}

// LastUsed returns the time of last activity.
func (b *Breaker) LastUsed() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed
}
