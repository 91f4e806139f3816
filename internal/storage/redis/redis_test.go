package redis

import (
	"context"
	"errors"
	"net/http"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	frontpage "github.com/eugener/frontpage/internal"
)

func TestPackUnpack(t *testing.T) {
	t.Parallel()

	stored := time.Now()
	in := &frontpage.CachedResponse{
		Status:    503,
		Header:    http.Header{"Content-Type": {"application/json"}},
		Body:      []byte(`{"offline":true}`),
		StoredAt:  stored,
		ExpiresAt: stored.Add(30 * time.Second),
	}
	b, err := packEntry(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := unpackEntry(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != 503 || string(out.Body) != `{"offline":true}` {
		t.Errorf("got status %d body %q", out.Status, out.Body)
	}
	if out.Header.Get("Content-Type") != "application/json" {
		t.Errorf("header = %v", out.Header)
	}
	if !out.StoredAt.Equal(stored) || !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Errorf("times = %v / %v", out.StoredAt, out.ExpiresAt)
	}
}

func TestUnpackTruncated(t *testing.T) {
	t.Parallel()
	if _, err := unpackEntry([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short entry")
	}
	b, _ := packEntry(&frontpage.CachedResponse{Status: 200, Header: http.Header{"A": {"b"}}})
	if _, err := unpackEntry(b[:headerSize+2]); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for nil client")
	}
}

// newTestStore connects to the Redis named by FRONTPAGE_TEST_REDIS and
// isolates the test under a unique namespace.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("FRONTPAGE_TEST_REDIS")
	if addr == "" {
		t.Skip("FRONTPAGE_TEST_REDIS not set")
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	ns := "frontpage-test:" + t.Name() + ":" + time.Now().Format("150405.000000") + ":"
	s, err := New(Options{Client: c, Namespace: ns})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		names, _ := s.Names(ctx)
		for _, n := range names {
			s.Delete(ctx, n)
		}
		c.Del(ctx, s.setKey())
		c.Close()
	})
	return s
}

func TestRedisStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	c, err := s.Open(ctx, "api")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	_ = c.Put(ctx, "/api/a?t=1", &frontpage.CachedResponse{Status: 200, Body: []byte("old"), StoredAt: now, ExpiresAt: now.Add(-time.Minute)})
	_ = c.Put(ctx, "/api/a?t=2", &frontpage.CachedResponse{Status: 200, Body: []byte("new"), StoredAt: now, ExpiresAt: now.Add(time.Minute)})

	got, err := c.Match(ctx, "/api/a?t=2")
	if err != nil || string(got.Body) != "new" {
		t.Fatalf("match = %v, %v", got, err)
	}
	if _, err := c.Match(ctx, "/api/missing"); !errors.Is(err, frontpage.ErrNotFound) {
		t.Errorf("miss err = %v", err)
	}

	n, err := s.PurgeExpired(ctx, "api", now)
	if err != nil || n != 1 {
		t.Errorf("purge = %d, %v", n, err)
	}
	keys, _ := c.Keys(ctx)
	if !slices.Equal(keys, []string{"/api/a?t=2"}) {
		t.Errorf("keys = %v", keys)
	}

	if names, _ := s.Names(ctx); !slices.Contains(names, "api") {
		t.Error("container should exist")
	}
	deleted, err := s.Delete(ctx, "api")
	if err != nil || !deleted {
		t.Errorf("delete = %v, %v", deleted, err)
	}
	if keys, _ := c.Keys(ctx); len(keys) != 0 {
		t.Errorf("keys after delete = %v", keys)
	}
}
