package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(rpm int64) (*Registry, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	r := NewRegistry(rpm)
	r.now = c.now
	return r, c
}

func TestRegistry_Allow(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(3)

	for i := range 3 {
		res := r.Allow("10.0.0.1")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != int64(2-i) {
			t.Errorf("remaining = %d, want %d", res.Remaining, 2-i)
		}
	}

	res := r.Allow("10.0.0.1")
	if res.Allowed {
		t.Error("4th request should be denied")
	}
	if res.RetryAfterSeconds <= 0 || res.Limit != 3 {
		t.Errorf("denied result = %+v", res)
	}
}

func TestRegistry_Refill(t *testing.T) {
	t.Parallel()
	r, c := newTestRegistry(1)

	if !r.Allow("a").Allowed {
		t.Fatal("first request should be allowed")
	}
	if r.Allow("a").Allowed {
		t.Fatal("second request should be denied")
	}
	c.advance(61 * time.Second)
	if !r.Allow("a").Allowed {
		t.Error("request should be allowed after refill")
	}
}

func TestRegistry_KeysIndependent(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(1)

	r.Allow("a")
	if r.Allow("a").Allowed {
		t.Error("a should be exhausted")
	}
	if !r.Allow("b").Allowed {
		t.Error("b has its own bucket")
	}
}

func TestRegistry_Unlimited(t *testing.T) {
	t.Parallel()
	r := NewRegistry(0)
	for range 1000 {
		if !r.Allow("a").Allowed {
			t.Fatal("unlimited registry denied a request")
		}
	}
	if r.Len() != 0 {
		t.Errorf("unlimited registry tracked %d keys", r.Len())
	}
}

func TestRegistry_EvictStale(t *testing.T) {
	t.Parallel()
	r, c := newTestRegistry(10)

	r.Allow("old")
	c.advance(10 * time.Minute)
	r.Allow("new")

	if n := r.EvictStale(c.now().Add(-time.Minute)); n != 1 {
		t.Errorf("evicted = %d, want 1", n)
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(100)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 200 {
		wg.Go(func() {
			if r.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	if allowed != 100 {
		t.Errorf("allowed = %d, want 100", allowed)
	}
}
