package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	frontpage "github.com/eugener/frontpage/internal"
)

// maxEntryBytes bounds a captured body. Larger responses are streamed
// through without being stored.
const maxEntryBytes = 8 << 20

// SourceHeader tells clients where a response came from.
const SourceHeader = "X-Offline-Source"

// Response sources, also used as the metric label.
const (
	sourceNetwork  = "network"
	sourceCache    = "cache"
	sourceFallback = "fallback"
	sourceOffline  = "offline"
	sourcePass     = "passthrough"
	sourceError    = "error"
)

var errTooLarge = errors.New("response too large to cache")

// capture reads resp fully into a CachedResponse. When the body exceeds
// maxEntryBytes it returns errTooLarge together with a response that replays
// the bytes already read; the caller must use that response instead of resp.
func capture(resp *http.Response, now time.Time) (*frontpage.CachedResponse, *http.Response, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEntryBytes+1))
	if err != nil {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxEntryBytes {
		replay := *resp
		replay.Body = readCloser{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return nil, &replay, errTooLarge
	}
	resp.Body.Close()
	return &frontpage.CachedResponse{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: now,
	}, nil, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// cancelOnClose releases a per-attempt context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// toResponse materialises a stored entry as a fresh *http.Response.
func toResponse(req *http.Request, e *frontpage.CachedResponse, source string) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(SourceHeader, source)
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func ok(status int) bool { return status >= 200 && status < 300 }

// bucketKey appends the time bucket token to uri, so repeated fetches within
// one bucket share a key.
func bucketKey(uri string, now time.Time, bucket time.Duration) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "t=" + strconv.FormatInt(now.UnixMilli()/bucket.Milliseconds(), 10)
}

// stripBucket removes a trailing bucket token added by bucketKey.
// Keys without one are returned unchanged.
func stripBucket(key string) string {
	i := strings.LastIndex(key, "t=")
	if i < 1 || (key[i-1] != '?' && key[i-1] != '&') {
		return key
	}
	digits := key[i+2:]
	if digits == "" {
		return key
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return key
		}
	}
	return key[:i-1]
}

// --- Synthesized substitutes ---

type offlineBody struct {
	Error     string `json:"error"`
	Offline   bool   `json:"offline"`
	Timestamp string `json:"timestamp"`
}

// offlineAPI is the 503 envelope returned when neither network nor cache can answer.
func offlineAPI(now time.Time) *frontpage.CachedResponse {
	body, _ := json.Marshal(offlineBody{
		Error:     "Service temporarily unavailable",
		Offline:   true,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return &frontpage.CachedResponse{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{
			"Content-Type":  {"application/json"},
			"Cache-Control": {"no-cache"},
		},
		Body:     body,
		StoredAt: now,
	}
}

const offlineHTML = `<!DOCTYPE html>
<html><head><title>Offline - Media Server</title></head>
<body style="background:#000;color:#fff;font-family:sans-serif;text-align:center;padding:50px;">
<h1>Offline Mode</h1>
<p>You're currently offline. Please check your connection.</p>
</body></html>
`

// offlinePage replaces the page shell when it cannot be fetched or found in cache.
func offlinePage(now time.Time) *frontpage.CachedResponse {
	return &frontpage.CachedResponse{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:     []byte(offlineHTML),
		StoredAt: now,
	}
}

const placeholderSVG = `<svg width="140" height="140" xmlns="http://www.w3.org/2000/svg">
<rect width="140" height="140" fill="#333"/>
<text x="70" y="70" font-family="Arial" font-size="48" fill="#666" text-anchor="middle" dy=".3em">?</text>
</svg>`

// placeholderImage stands in for an image that is neither cached nor reachable.
func placeholderImage(now time.Time) *frontpage.CachedResponse {
	return &frontpage.CachedResponse{
		Status: http.StatusOK,
		Header: http.Header{
			"Content-Type":  {"image/svg+xml"},
			"Cache-Control": {"public, max-age=86400"},
		},
		Body:     []byte(placeholderSVG),
		StoredAt: now,
	}
}
