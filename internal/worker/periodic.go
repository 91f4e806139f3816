package worker

import (
	"context"
	"time"
)

// Periodic runs a housekeeping function on a fixed interval.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
}

// NewPeriodic creates a Periodic worker calling fn every interval.
func NewPeriodic(name string, interval time.Duration, fn func(ctx context.Context)) *Periodic {
	return &Periodic{name: name, interval: interval, fn: fn}
}

// Name returns the worker identifier.
func (w *Periodic) Name() string { return w.name }

// Run calls fn every interval until ctx is cancelled.
func (w *Periodic) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.fn(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}
