package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	frontpage "github.com/eugener/frontpage/internal"
)

// Jellyseerr reads recent media requests.
type Jellyseerr struct{ sourceBase }

// NewJellyseerr returns a Jellyseerr source for the server at baseURL.
func NewJellyseerr(baseURL, key string, hc *http.Client, posters *Posters) *Jellyseerr {
	return &Jellyseerr{newBase(baseURL, withAPIKey(hcOrDefault(hc), key), posters)}
}

// Name returns "jellyseerr".
func (s *Jellyseerr) Name() string { return "jellyseerr" }

var requestStates = map[int64][2]string{
	1: {"request", "📝 PENDING"},
	2: {"approved", "✅ APPROVED"},
	3: {"available", "🎬 AVAILABLE"},
	4: {"declined", "❌ DECLINED"},
	5: {"processing", "⚙️ PROCESSING"},
}

// Activity returns the 20 most recently added requests.
func (s *Jellyseerr) Activity(ctx context.Context) ([]frontpage.Activity, error) {
	doc, err := getJSON(ctx, s.http, s.url+"/api/v1/request?take=20&sort=added")
	if err != nil {
		return nil, fmt.Errorf("jellyseerr requests: %w", err)
	}

	var out []frontpage.Activity
	for _, req := range doc.Get("results").Array() {
		status := req.Get("status").Int()
		if status == 0 {
			status = 1
		}
		state, ok := requestStates[status]
		if !ok {
			state = [2]string{"request", "UNKNOWN"}
		}

		media := req.Get("media")
		mediaType := orDefault(media.Get("mediaType").String(), "movie")
		title := firstString(media.Get("title"), media.Get("name"))
		if title == "" {
			title = "Unknown " + strings.ToUpper(mediaType[:1]) + mediaType[1:]
		}
		poster := s.posters.ByID(ctx, mediaType, media.Get("tmdbId").Int())
		posterURL := resolve(poster, title, "jellyseerr")
		if poster.Title != "" {
			title = poster.Title
		}
		if unknown(title) {
			continue
		}

		user := "Unknown"
		if by := req.Get("requestedBy"); by.IsObject() {
			user = by.Get("displayName").String()
		} else if by.String() != "" {
			user = by.String()
		}
		typeText := "Media"
		switch mediaType {
		case "movie":
			typeText = "🎬 Movie"
		case "tv":
			typeText = "📺 TV Show"
		}

		out = append(out, frontpage.Activity{
			ID:         "jellyseerr-" + req.Get("id").String(),
			Type:       state[0],
			Title:      title,
			Subtitle:   "Requested by " + user + " • " + typeText,
			Poster:     posterURL,
			Status:     state[0],
			StatusText: state[1],
			Timestamp:  orDefault(req.Get("createdAt").String(), s.stamp()),
			Source:     "jellyseerr",
		})
	}
	return out, nil
}
