package testutil

import (
	"context"
	"sync"

	frontpage "github.com/eugener/frontpage/internal"
)

// FakeNotifier records shown notifications.
type FakeNotifier struct {
	Err error

	mu    sync.Mutex
	shown []frontpage.Notification
}

// Show records n and returns Err.
func (f *FakeNotifier) Show(_ context.Context, n frontpage.Notification) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	f.shown = append(f.shown, n)
	f.mu.Unlock()
	return nil
}

// Shown returns the recorded notifications.
func (f *FakeNotifier) Shown() []frontpage.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frontpage.Notification(nil), f.shown...)
}
