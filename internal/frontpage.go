// Package frontpage defines domain types and interfaces for the media frontpage server.
// This package has no project imports -- it is the dependency root.
package frontpage

import (
	"context"
	"net/http"
	"time"
)

// --- Offline cache ---

// CachedResponse is a captured HTTP response held by a cache container.
// Entries are immutable once written; a new Put for the same key replaces the entry.
type CachedResponse struct {
	Status    int         `json:"status"`
	Header    http.Header `json:"header"`
	Body      []byte      `json:"-"`
	StoredAt  time.Time   `json:"stored_at"`
	ExpiresAt time.Time   `json:"expires_at"` // zero = never
}

// Expired reports whether the entry is past its explicit expiry.
func (c *CachedResponse) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Clone returns a deep copy so callers can mutate headers without touching stored state.
func (c *CachedResponse) Clone() *CachedResponse {
	out := *c
	out.Header = c.Header.Clone()
	out.Body = append([]byte(nil), c.Body...)
	return &out
}

// CacheContainer is a named key-value store of captured responses.
type CacheContainer interface {
	// Match returns the entry stored under key, or ErrNotFound.
	Match(ctx context.Context, key string) (*CachedResponse, error)
	// Put stores resp under key, replacing any previous entry.
	Put(ctx context.Context, key string, resp *CachedResponse) error
	// Keys lists all keys in the container in no particular order.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes the entry stored under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// CacheStorage owns the set of named containers.
type CacheStorage interface {
	// Open returns the named container, creating it if needed.
	Open(ctx context.Context, name string) (CacheContainer, error)
	// Names lists all existing container names.
	Names(ctx context.Context) ([]string, error)
	// Delete drops a container and all its entries. Returns false if it did not exist.
	Delete(ctx context.Context, name string) (bool, error)
}

// Fetcher performs the "network" side of an intercepted request.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// --- Notifications ---

// NotificationAction is a button shown on a notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is a system alert surfaced to the operator.
type Notification struct {
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Tag                string               `json:"tag"`
	RequireInteraction bool                 `json:"require_interaction"`
	Actions            []NotificationAction `json:"actions"`
	ShownAt            time.Time            `json:"shown_at"`
}

// Notifier displays notifications.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// --- Service health ---

// HealthState is the coarse availability of a monitored service.
type HealthState string

const (
	HealthOnline   HealthState = "online"
	HealthDegraded HealthState = "degraded"
	HealthOffline  HealthState = "offline"
)

// ServiceHealth is the result of the last check of a single service.
type ServiceHealth struct {
	Name         string      `json:"name"`
	Status       HealthState `json:"status"`
	ResponseTime *int64      `json:"response_time"` // ms, nil when unreachable
	StatusCode   *int        `json:"status_code"`
	LastChecked  time.Time   `json:"last_checked"`
	Error        *string     `json:"error"`
}

// --- Media activity ---

// Activity is one entry of the combined media activity feed.
type Activity struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	User        string `json:"user,omitempty"`
	Progress    *int   `json:"progress,omitempty"`
	Poster      string `json:"poster"`
	Status      string `json:"status"`
	StatusText  string `json:"statusText"`
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source"`
	Transcoding bool   `json:"transcoding"`
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
