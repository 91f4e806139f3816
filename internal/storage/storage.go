// Package storage defines the persistent cache backend contract and the
// body/header encoding shared by the sqlite and redis backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/snappy"

	frontpage "github.com/eugener/frontpage/internal"
)

// Backend is a CacheStorage that holds external resources.
type Backend interface {
	frontpage.CacheStorage
	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error
	// Close releases the backend's connections.
	Close() error
}

// Expirer is implemented by backends that can drop stale entries in bulk.
type Expirer interface {
	// PurgeExpired deletes entries in container whose expiry is before cutoff.
	// Entries without an expiry are kept. Returns the number removed.
	PurgeExpired(ctx context.Context, container string, cutoff time.Time) (int, error)
}

// EncodeBody compresses a response body for storage.
func EncodeBody(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	return snappy.Encode(nil, body)
}

// DecodeBody reverses EncodeBody.
func DecodeBody(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	body, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return body, nil
}

// EncodeHeader serializes response headers as JSON.
func EncodeHeader(h http.Header) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	return string(b), nil
}

// DecodeHeader reverses EncodeHeader.
func DecodeHeader(s string) (http.Header, error) {
	h := http.Header{}
	if s == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// UnixNano converts t to nanoseconds, mapping the zero time to 0.
func UnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// FromUnixNano reverses UnixNano.
func FromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
