// Package testutil provides configurable test fakes for frontpage interfaces.
package testutil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// ErrNetwork is returned by fakes simulating an unreachable origin.
var ErrNetwork = errors.New("testutil: connection refused")

// FakeFetcher is a configurable frontpage.Fetcher that records requests.
type FakeFetcher struct {
	FetchFn func(ctx context.Context, req *http.Request) (*http.Response, error)

	mu       sync.Mutex
	requests []*http.Request
}

// Fetch records req and delegates to FetchFn, or answers 404.
func (f *FakeFetcher) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.FetchFn != nil {
		return f.FetchFn(ctx, req)
	}
	return Respond(http.StatusNotFound, "text/plain", "not found"), nil
}

// Calls returns the request URIs seen so far, in order.
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.URL.RequestURI()
	}
	return out
}

// Requests returns the recorded requests.
func (f *FakeFetcher) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

// CallCount returns the number of fetches.
func (f *FakeFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Respond builds a canned response.
func Respond(status int, contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// Routes returns a FetchFn answering from a path -> body table with 200 and
// failing every other path with ErrNetwork.
func Routes(contentType string, bodies map[string]string) func(context.Context, *http.Request) (*http.Response, error) {
	return func(_ context.Context, req *http.Request) (*http.Response, error) {
		body, ok := bodies[req.URL.Path]
		if !ok {
			return nil, ErrNetwork
		}
		return Respond(http.StatusOK, contentType, body), nil
	}
}

// Offline is a FetchFn that always fails with ErrNetwork.
func Offline(context.Context, *http.Request) (*http.Response, error) {
	return nil, ErrNetwork
}
