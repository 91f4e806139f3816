package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eugener/frontpage/internal/telemetry"
)

type fakeCleaner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int
	err     error
}

func (f *fakeCleaner) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func TestRetentionWorker_PurgesOnStart(t *testing.T) {
	t.Parallel()
	c := &fakeCleaner{n: 3}
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	w := NewRetentionWorker(c, 24*time.Hour, metrics)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cutoffs) != 1 {
		t.Fatalf("cleanups = %d, want 1", len(c.cutoffs))
	}
	if want := now.Add(-24 * time.Hour); !c.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", c.cutoffs[0], want)
	}
	if got := testutil.ToFloat64(metrics.EntriesPurged); got != 3 {
		t.Errorf("entries purged = %v, want 3", got)
	}
}

func TestRetentionWorker_ErrorKeepsRunning(t *testing.T) {
	t.Parallel()
	c := &fakeCleaner{err: errors.New("storage down")}
	w := NewRetentionWorker(c, time.Hour, nil)
	w.interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cutoffs) < 2 {
		t.Errorf("cleanups = %d, want retries after failure", len(c.cutoffs))
	}
}

func TestRetentionWorker_Disabled(t *testing.T) {
	t.Parallel()
	c := &fakeCleaner{}
	if err := NewRetentionWorker(c, 0, nil).Run(t.Context()); err != nil {
		t.Fatal(err)
	}
	if len(c.cutoffs) != 0 {
		t.Error("disabled worker should not purge")
	}
}
