package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/dnscache"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/circuitbreaker"
)

func TestNewTransportNilResolver(t *testing.T) {
	t.Parallel()

	tr := NewTransport(nil, false)
	if tr.MaxIdleConnsPerHost != 16 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 16", tr.MaxIdleConnsPerHost)
	}
	if tr.IdleConnTimeout != 90*time.Second {
		t.Errorf("IdleConnTimeout = %v, want 90s", tr.IdleConnTimeout)
	}
	if tr.DialContext != nil {
		t.Error("DialContext should be nil when resolver is nil")
	}
	if tr.ForceAttemptHTTP2 {
		t.Error("ForceAttemptHTTP2 should be false")
	}
}

func TestNewTransportWithResolver(t *testing.T) {
	t.Parallel()

	tr := NewTransport(&dnscache.Resolver{}, true)
	if tr.DialContext == nil {
		t.Error("DialContext should be set when resolver is non-nil")
	}
	if !tr.ForceAttemptHTTP2 {
		t.Error("ForceAttemptHTTP2 should be true")
	}
}

func TestClientFetch(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/base/api/stats" {
			t.Errorf("path = %q, want /base/api/stats", r.URL.Path)
		}
		if r.URL.RawQuery != "x=1" {
			t.Errorf("query = %q, want x=1", r.URL.RawQuery)
		}
		if r.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("Cache-Control = %q", r.Header.Get("Cache-Control"))
		}
		if r.Header.Get("Proxy-Authorization") != "" {
			t.Error("hop-by-hop header forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer origin.Close()

	c, err := NewClient(origin.URL+"/base/", origin.Client())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/stats?x=1", nil)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Proxy-Authorization", "secret")

	resp, err := c.Fetch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	t.Parallel()
	if _, err := NewClient("/just/a/path", nil); !errors.Is(err, frontpage.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestClientBreakerOpens(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer origin.Close()

	cfg := circuitbreaker.DefaultConfig()
	cfg.MinSamples = 2
	reg := circuitbreaker.NewRegistry(cfg)
	var hookCalls int
	c, err := NewClient(origin.URL, origin.Client(),
		WithBreakers(reg),
		WithErrorHook(func(string) { hookCalls++ }),
	)
	if err != nil {
		t.Fatal(err)
	}

	for range 2 {
		resp, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/api/x", nil))
		if err != nil {
			t.Fatalf("5xx should be returned as a response, got %v", err)
		}
		resp.Body.Close()
	}
	if hookCalls != 2 {
		t.Errorf("hook calls = %d, want 2", hookCalls)
	}

	_, err = c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/api/x", nil))
	if !errors.Is(err, frontpage.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestClientConnectionRefused(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.NotFoundHandler())
	url := origin.URL
	origin.Close()

	c, err := NewClient(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Error("expected error from closed origin")
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	err := &StatusError{Code: 503, URL: "/api/x"}
	if circuitbreaker.ClassifyError(err) != 1.0 {
		t.Error("5xx StatusError should weigh 1.0")
	}
	if circuitbreaker.ClassifyError(&StatusError{Code: 404}) != 0 {
		t.Error("4xx StatusError should weigh 0")
	}
}

func TestHandlerFetcher(t *testing.T) {
	t.Parallel()

	f := HandlerFetcher{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
		w.WriteHeader(http.StatusTeapot) // ignored
	})}

	resp, err := f.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/index.html", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if string(body) != "hello" || resp.Header.Get("X-Path") != "/index.html" {
		t.Errorf("body = %q, header = %v", body, resp.Header)
	}
	if resp.Header.Get("Content-Type") == "" {
		t.Error("Content-Type should be sniffed")
	}
}

func TestHandlerFetcherDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	f := HandlerFetcher{Handler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	})}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, httptest.NewRequest(http.MethodGet, "/api/slow", nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestHandlerFetcherPanic(t *testing.T) {
	t.Parallel()

	f := HandlerFetcher{Handler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})}
	if _, err := f.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Error("expected error from panicking handler")
	}
}
