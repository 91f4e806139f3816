package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/telemetry"
)

// strategy produces the response for one classified request. source names
// where it came from.
type strategy func(ctx context.Context, gen *generation, req *http.Request) (resp *http.Response, source string, err error)

// substitute synthesizes a response when cache-first finds neither cache nor
// network. A nil result means the error propagates.
type substitute func(path string, now time.Time) *frontpage.CachedResponse

func offlineShell(path string, now time.Time) *frontpage.CachedResponse {
	if isShell(path) {
		return offlinePage(now)
	}
	return nil
}

func offlineImage(_ string, now time.Time) *frontpage.CachedResponse {
	return placeholderImage(now)
}

// Handle answers req, from the network or the cache depending on its route
// kind. Only GET requests for the origin are intercepted, and only while a
// version is active. Requests for another host fail with
// frontpage.ErrMisdirected and are never fetched.
func (m *Manager) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !m.sameOrigin(req) {
		return nil, fmt.Errorf("%s: %w", req.URL.Host, frontpage.ErrMisdirected)
	}
	gen := m.active.Load()
	if gen == nil || req.Method != http.MethodGet {
		return m.network.Fetch(ctx, req)
	}

	kind := gen.cfg.Classify(req.URL.Path)
	ctx, span := m.tracer.Start(ctx, "offline."+kind.String(),
		trace.WithAttributes(attribute.String("http.path", req.URL.Path)),
	)
	resp, source, err := m.strategies[kind](ctx, gen, req)
	span.SetAttributes(attribute.String("offline.source", source))
	telemetry.EndSpan(span, err)

	if m.metrics != nil {
		m.metrics.OfflineResponses.WithLabelValues(kind.String(), source).Inc()
	}
	return resp, err
}

// sameOrigin reports whether req targets the dashboard origin.
func (m *Manager) sameOrigin(req *http.Request) bool {
	m.mu.RLock()
	origin := m.cfg.OriginHost
	m.mu.RUnlock()
	if req.URL.IsAbs() {
		return origin != "" && sameHost(req.URL.Host, origin)
	}
	return origin == "" || sameHost(req.Host, origin)
}

func sameHost(a, b string) bool {
	return strings.EqualFold(stripPort(a), stripPort(b))
}

func stripPort(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// networkFirst serves API requests: a bounded network attempt whose 2xx
// response is stored under a bucketed key, falling back to the most recent
// stored copy and finally to a 503 offline envelope.
func (m *Manager) networkFirst(ctx context.Context, gen *generation, req *http.Request) (*http.Response, string, error) {
	uri := req.URL.RequestURI()
	fctx, cancel := context.WithTimeout(ctx, gen.cfg.APITimeout)

	out := req.Clone(fctx)
	out.Header.Set("Cache-Control", "no-cache")
	resp, err := m.network.Fetch(fctx, out)
	if err == nil && !ok(resp.StatusCode) {
		resp.Body.Close()
		err = fmt.Errorf("HTTP %d: %w", resp.StatusCode, frontpage.ErrUpstream)
	}
	if err == nil {
		now := m.now()
		entry, replay, cerr := capture(resp, now)
		switch {
		case cerr == nil:
			cancel()
			entry.ExpiresAt = now.Add(gen.cfg.Bucket)
			key := bucketKey(uri, now, gen.cfg.Bucket)
			if perr := gen.api.Put(ctx, key, entry); perr != nil {
				slog.LogAttrs(ctx, slog.LevelWarn, "api cache write failed",
					slog.String("key", key),
					slog.String("error", perr.Error()),
				)
			}
			return toResponse(req, entry, sourceNetwork), sourceNetwork, nil
		case errors.Is(cerr, errTooLarge):
			replay.Body = cancelOnClose{replay.Body, cancel}
			return replay, sourceNetwork, nil
		default:
			err = cerr
		}
	}
	cancel()

	slog.LogAttrs(ctx, slog.LevelWarn, "api network attempt failed, trying cache",
		slog.String("path", uri),
		slog.String("error", err.Error()),
	)
	entry, ferr := m.latest(ctx, gen, uri)
	if ferr != nil {
		return nil, sourceError, fmt.Errorf("api fallback %s: %w", uri, ferr)
	}
	if entry != nil {
		return toResponse(req, entry, sourceFallback), sourceFallback, nil
	}
	return toResponse(req, offlineAPI(m.now()), sourceOffline), sourceOffline, nil
}

// latest returns the most recently stored API entry for uri across all
// buckets, or nil when there is none.
func (m *Manager) latest(ctx context.Context, gen *generation, uri string) (*frontpage.CachedResponse, error) {
	keys, err := gen.api.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var best *frontpage.CachedResponse
	for _, k := range keys {
		if stripBucket(k) != uri {
			continue
		}
		e, err := gen.api.Match(ctx, k)
		if errors.Is(err, frontpage.ErrNotFound) {
			continue // evicted between Keys and Match
		}
		if err != nil {
			return nil, err
		}
		if best == nil || e.StoredAt.After(best.StoredAt) {
			best = e
		}
	}
	return best, nil
}

// cacheFirst serves static assets and images from the static container,
// fetching and storing on a miss. sub decides the response when the network
// fails.
func (m *Manager) cacheFirst(sub substitute) strategy {
	return func(ctx context.Context, gen *generation, req *http.Request) (*http.Response, string, error) {
		key := req.URL.RequestURI()
		entry, err := gen.static.Match(ctx, key)
		if err == nil {
			return toResponse(req, entry, sourceCache), sourceCache, nil
		}
		if !errors.Is(err, frontpage.ErrNotFound) {
			return nil, sourceError, fmt.Errorf("static cache %s: %w", key, err)
		}

		resp, err := m.network.Fetch(ctx, req)
		if err != nil {
			if s := sub(req.URL.Path, m.now()); s != nil {
				slog.LogAttrs(ctx, slog.LevelWarn, "serving offline substitute",
					slog.String("path", key),
					slog.String("error", err.Error()),
				)
				return toResponse(req, s, sourceOffline), sourceOffline, nil
			}
			return nil, sourceError, fmt.Errorf("%s: %w: %w", key, frontpage.ErrOffline, err)
		}
		if !ok(resp.StatusCode) {
			return resp, sourceNetwork, nil
		}

		entry, replay, err := capture(resp, m.now())
		switch {
		case err == nil:
			if perr := gen.static.Put(ctx, key, entry); perr != nil {
				slog.LogAttrs(ctx, slog.LevelWarn, "static cache write failed",
					slog.String("key", key),
					slog.String("error", perr.Error()),
				)
			}
			return toResponse(req, entry, sourceNetwork), sourceNetwork, nil
		case errors.Is(err, errTooLarge):
			return replay, sourceNetwork, nil
		default:
			return nil, sourceError, err
		}
	}
}

// passThrough sends the request to the network untouched.
func (m *Manager) passThrough(ctx context.Context, _ *generation, req *http.Request) (*http.Response, string, error) {
	resp, err := m.network.Fetch(ctx, req)
	if err != nil {
		return nil, sourceError, err
	}
	return resp, sourcePass, nil
}

// ServeHTTP writes the result of Handle. Requests for another host get 421.
// Failures that no strategy recovers become 502 responses.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := m.Handle(r.Context(), r)
	if err != nil {
		if r.Context().Err() != nil {
			return // client went away
		}
		status, msg, typ := http.StatusBadGateway, "upstream unavailable", "upstream_error"
		level := slog.LevelError
		if errors.Is(err, frontpage.ErrMisdirected) {
			status, msg, typ = http.StatusMisdirectedRequest, "request is not for this origin", "invalid_request_error"
			level = slog.LevelWarn
		}
		slog.LogAttrs(r.Context(), level, "offline handler error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": msg, "type": typ},
		})
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		if _, hop := hopByHop[k]; hop {
			continue
		}
		w.Header()[k] = vs
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

var hopByHop = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},
	"Upgrade":           {},
	"Trailer":           {},
}
