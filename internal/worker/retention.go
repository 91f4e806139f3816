package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/eugener/frontpage/internal/telemetry"
)

const defaultRetentionInterval = 10 * time.Minute

// Cleaner removes cached API entries that expired before cutoff.
type Cleaner interface {
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
}

// RetentionWorker bounds the API cache. Every bucket leaves a key behind,
// so entries that expired longer than the retention ago are purged.
type RetentionWorker struct {
	cleaner   Cleaner
	retention time.Duration
	interval  time.Duration
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewRetentionWorker creates a RetentionWorker. A retention <= 0 disables it.
// metrics may be nil.
func NewRetentionWorker(c Cleaner, retention time.Duration, metrics *telemetry.Metrics) *RetentionWorker {
	return &RetentionWorker{
		cleaner:   c,
		retention: retention,
		interval:  defaultRetentionInterval,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Name returns the worker identifier.
func (w *RetentionWorker) Name() string { return "cache_retention" }

// Run purges once at startup, then every interval until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) error {
	if w.retention <= 0 {
		return nil
	}
	w.purge(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.purge(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *RetentionWorker) purge(ctx context.Context) {
	cutoff := w.now().Add(-w.retention)
	n, err := w.cleaner.Cleanup(ctx, cutoff)
	if n > 0 && w.metrics != nil {
		w.metrics.EntriesPurged.Add(float64(n))
	}
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "cache retention failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		slog.LogAttrs(ctx, slog.LevelInfo, "expired cache entries purged",
			slog.Int("count", n),
			slog.Time("cutoff", cutoff),
		)
	}
}
