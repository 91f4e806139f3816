// Package notify keeps the notifications raised by the offline layer so the
// dashboard can list and dismiss them.
package notify

import (
	"context"
	"slices"
	"sync"

	frontpage "github.com/eugener/frontpage/internal"
)

// DefaultCapacity bounds a Feed created with a non-positive capacity.
const DefaultCapacity = 50

// Feed is a bounded in-memory list of shown notifications, newest first.
type Feed struct {
	mu    sync.Mutex
	items []frontpage.Notification
	limit int
}

// NewFeed returns a Feed holding at most capacity notifications.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{limit: capacity}
}

// Show adds n at the head of the feed, replacing any entry with the same tag.
func (f *Feed) Show(_ context.Context, n frontpage.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = slices.DeleteFunc(f.items, func(o frontpage.Notification) bool {
		return o.Tag == n.Tag
	})
	f.items = slices.Insert(f.items, 0, n)
	if len(f.items) > f.limit {
		f.items = f.items[:f.limit]
	}
	return nil
}

// List returns a copy of the feed, newest first.
func (f *Feed) List() []frontpage.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

// Close removes the notification with tag. It reports whether one existed.
func (f *Feed) Close(tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.items)
	f.items = slices.DeleteFunc(f.items, func(o frontpage.Notification) bool {
		return o.Tag == tag
	})
	return len(f.items) < n
}
