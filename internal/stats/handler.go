package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	frontpage "github.com/eugener/frontpage/internal"
)

// Sampler returns a host sample.
type Sampler interface {
	Collect(ctx context.Context) (System, error)
}

// HealthCounter reports service state totals.
type HealthCounter interface {
	Counts() (online, degraded, offline int)
}

// ActivityFeed returns the merged media activity list.
type ActivityFeed interface {
	Combined(ctx context.Context) []frontpage.Activity
}

// Deps holds the /api/stats sources. Every field may be nil.
type Deps struct {
	System   Sampler
	Health   HealthCounter
	Activity ActivityFeed
	Now      func() time.Time
}

// Stats is the /api/stats body. Host fields sit at the top level and
// are omitted when no Sampler is configured.
type Stats struct {
	*System
	Services  ServiceCounts  `json:"services"`
	Activity  map[string]int `json:"activity"`
	Total     int            `json:"total"`
	Timestamp string         `json:"timestamp"`
}

// ServiceCounts tallies monitored services by state.
type ServiceCounts struct {
	Online   int `json:"online"`
	Degraded int `json:"degraded"`
	Offline  int `json:"offline"`
}

// Handler serves /api/stats.
func Handler(d Deps) http.HandlerFunc {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s := Stats{Activity: map[string]int{}, Timestamp: now().UTC().Format(time.RFC3339)}
		if d.System != nil {
			sys, err := d.System.Collect(ctx)
			if err != nil {
				slog.WarnContext(ctx, "host stats incomplete", "error", err)
			}
			s.System = &sys
		}
		if d.Health != nil {
			s.Services.Online, s.Services.Degraded, s.Services.Offline = d.Health.Counts()
		}
		if d.Activity != nil {
			for _, it := range d.Activity.Combined(ctx) {
				s.Activity[it.Source]++
				s.Total++
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}
