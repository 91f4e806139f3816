package worker

import (
	"context"
	"log/slog"
	"time"
)

// Syncer replays a background sync event.
type Syncer interface {
	Sync(ctx context.Context, tag string) bool
}

// SyncWorker fires the background stats sync on a fixed interval, standing
// in for the browser's connectivity-triggered sync events.
type SyncWorker struct {
	syncer   Syncer
	tag      string
	interval time.Duration
}

// NewSyncWorker creates a SyncWorker. An interval <= 0 disables it.
func NewSyncWorker(s Syncer, tag string, interval time.Duration) *SyncWorker {
	return &SyncWorker{syncer: s, tag: tag, interval: interval}
}

// Name returns the worker identifier.
func (w *SyncWorker) Name() string { return "background_sync" }

// Run triggers a sync every interval until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.syncer.Sync(ctx, w.tag) {
				slog.LogAttrs(ctx, slog.LevelDebug, "background sync skipped",
					slog.String("tag", w.tag),
				)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
