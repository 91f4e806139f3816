package cache

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"
	"time"

	frontpage "github.com/eugener/frontpage/internal"
)

func TestStorage_OpenNamesDelete(t *testing.T) {
	t.Parallel()
	s := NewStorage(100)
	ctx := context.Background()

	if names, _ := s.Names(ctx); len(names) != 0 {
		t.Errorf("names before Open = %v", names)
	}
	for _, name := range []string{"media-frontpage-static-v1", "media-frontpage-api-v1", "other"} {
		if _, err := s.Open(ctx, name); err != nil {
			t.Fatal(err)
		}
	}

	names, err := s.Names(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"media-frontpage-api-v1", "media-frontpage-static-v1", "other"}
	if !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	deleted, err := s.Delete(ctx, "other")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, _ = s.Delete(ctx, "other")
	if deleted {
		t.Error("second delete should report false")
	}
	if names, _ := s.Names(ctx); slices.Contains(names, "other") {
		t.Error("deleted container still present")
	}
}

func TestStorage_OpenReturnsSameContainer(t *testing.T) {
	t.Parallel()
	s := NewStorage(100)
	ctx := context.Background()

	a, _ := s.Open(ctx, "c")
	if err := a.Put(ctx, "/x", &frontpage.CachedResponse{Status: 200, Body: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	b, _ := s.Open(ctx, "c")
	got, err := b.Match(ctx, "/x")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Body) != "x" {
		t.Errorf("body = %q", got.Body)
	}
}

func TestContainer_MatchPutKeysDelete(t *testing.T) {
	t.Parallel()
	s := NewStorage(100)
	ctx := context.Background()
	c, _ := s.Open(ctx, "api")

	if _, err := c.Match(ctx, "/api/stats?t=1"); !errors.Is(err, frontpage.ErrNotFound) {
		t.Errorf("miss err = %v, want ErrNotFound", err)
	}

	resp := &frontpage.CachedResponse{
		Status:   200,
		Header:   http.Header{"Content-Type": {"application/json"}},
		Body:     []byte(`{"ok":true}`),
		StoredAt: time.Now(),
	}
	if err := c.Put(ctx, "/api/stats?t=1", resp); err != nil {
		t.Fatal(err)
	}
	// Mutating the caller's copy must not leak into the stored entry.
	resp.Body[0] = 'X'
	resp.Header.Set("Content-Type", "text/plain")

	got, err := c.Match(ctx, "/api/stats?t=1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Body) != `{"ok":true}` {
		t.Errorf("body = %q", got.Body)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content-type = %q", got.Header.Get("Content-Type"))
	}

	_ = c.Put(ctx, "/api/stats?t=2", resp)
	keys, _ := c.Keys(ctx)
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"/api/stats?t=1", "/api/stats?t=2"}) {
		t.Errorf("keys = %v", keys)
	}

	if err := c.Delete(ctx, "/api/stats?t=1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Match(ctx, "/api/stats?t=1"); !errors.Is(err, frontpage.ErrNotFound) {
		t.Error("deleted key still matched")
	}
}
