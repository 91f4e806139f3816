package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSyncer struct {
	mu   sync.Mutex
	tags []string
}

func (f *fakeSyncer) Sync(_ context.Context, tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, tag)
	return true
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tags)
}

func TestSyncWorker_Fires(t *testing.T) {
	t.Parallel()
	s := &fakeSyncer{}
	w := NewSyncWorker(s, "background-stats-sync", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if s.count() < 2 {
		t.Fatalf("syncs = %d, want >= 2", s.count())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags[0] != "background-stats-sync" {
		t.Errorf("tag = %q", s.tags[0])
	}
}

func TestSyncWorker_Disabled(t *testing.T) {
	t.Parallel()
	s := &fakeSyncer{}
	w := NewSyncWorker(s, "x", 0)
	if err := w.Run(t.Context()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if s.count() != 0 {
		t.Errorf("disabled worker synced %d times", s.count())
	}
}
