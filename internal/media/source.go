// Package media builds the dashboard's activity feed from Tautulli,
// Jellyseerr, Sonarr and Radarr, decorated with TMDb posters.
package media

import (
	"context"
	"net/http"
	"strings"
	"time"

	frontpage "github.com/eugener/frontpage/internal"
)

// Source produces activity items from one upstream service.
type Source interface {
	Name() string
	Activity(ctx context.Context) ([]frontpage.Activity, error)
}

// sourceBase holds what every source needs.
type sourceBase struct {
	url     string
	http    *http.Client
	posters *Posters
	now     func() time.Time
}

func newBase(baseURL string, hc *http.Client, posters *Posters) sourceBase {
	if hc == nil {
		hc = http.DefaultClient
	}
	return sourceBase{
		url:     strings.TrimSuffix(baseURL, "/"),
		http:    hc,
		posters: posters,
		now:     time.Now,
	}
}

func (b sourceBase) stamp() string {
	return b.now().UTC().Format(time.RFC3339)
}

// unknown reports whether a title is a placeholder the feed should skip.
func unknown(title string) bool {
	return strings.HasPrefix(strings.ToLower(title), "unknown")
}

func intPtr(v int) *int { return &v }

// progress is the downloaded share of size, truncated to a percentage.
func progress(size, left float64) int {
	if size <= 0 {
		return 0
	}
	return int((size - left) / size * 100)
}

// queueStates maps *arr queue statuses to activity type and label.
var queueStates = map[string][2]string{
	"completed":   {"completed", "✅ COMPLETED"},
	"downloading": {"download", "⬇️ DOWNLOADING"},
	"queued":      {"download", "⬇️ QUEUED"},
	"paused":      {"paused", "⏸️ PAUSED"},
}

func queueState(status string) (string, string) {
	if s, ok := queueStates[strings.ToLower(status)]; ok {
		return s[0], s[1]
	}
	return "processing", "⚙️ PROCESSING"
}
