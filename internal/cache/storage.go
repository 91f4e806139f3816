package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/maypok86/otter/v2"

	frontpage "github.com/eugener/frontpage/internal"
)

// Storage is an in-memory frontpage.CacheStorage. Each container is its own
// otter cache bounded by maxEntries. Contents do not survive a restart.
type Storage struct {
	mu         sync.RWMutex
	maxEntries int
	containers map[string]*Container
}

// NewStorage returns an empty Storage whose containers hold at most maxEntries each.
func NewStorage(maxEntries int) *Storage {
	return &Storage{
		maxEntries: maxEntries,
		containers: make(map[string]*Container),
	}
}

// Open returns the named container, creating it on first use.
// Uses double-check locking to keep the common path on the read lock.
func (s *Storage) Open(_ context.Context, name string) (frontpage.CacheContainer, error) {
	s.mu.RLock()
	c, ok := s.containers[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.containers[name]; ok {
		return c, nil
	}
	oc, err := otter.New[string, *frontpage.CachedResponse](&otter.Options[string, *frontpage.CachedResponse]{
		MaximumSize: s.maxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("open container %q: %w", name, err)
	}
	c = &Container{cache: oc}
	s.containers[name] = c
	return c, nil
}

// Names returns all container names, sorted.
func (s *Storage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)
	return names, nil
}

// Delete drops the named container.
func (s *Storage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	c, ok := s.containers[name]
	delete(s.containers, name)
	s.mu.Unlock()
	if ok {
		c.cache.InvalidateAll()
	}
	return ok, nil
}

// Container is a single otter-backed cache container.
type Container struct {
	cache *otter.Cache[string, *frontpage.CachedResponse]
}

// Match returns a copy of the entry under key.
func (c *Container) Match(_ context.Context, key string) (*frontpage.CachedResponse, error) {
	e, ok := c.cache.GetIfPresent(key)
	if !ok {
		return nil, frontpage.ErrNotFound
	}
	return e.Clone(), nil
}

// Put stores a copy of resp so later mutation by the caller is not visible.
func (c *Container) Put(_ context.Context, key string, resp *frontpage.CachedResponse) error {
	c.cache.Set(key, resp.Clone())
	return nil
}

// Keys lists all keys currently held.
func (c *Container) Keys(_ context.Context) ([]string, error) {
	return slices.Collect(c.cache.Keys()), nil
}

// Delete removes the entry under key.
func (c *Container) Delete(_ context.Context, key string) error {
	c.cache.Invalidate(key)
	return nil
}
