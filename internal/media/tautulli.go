package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	frontpage "github.com/eugener/frontpage/internal"
)

// Tautulli reads current Plex sessions.
type Tautulli struct {
	sourceBase
	key string
}

// NewTautulli returns a Tautulli source. baseURL is the API endpoint, e.g.
// http://host:8181/api/v2; the key travels as a query parameter.
func NewTautulli(baseURL, key string, hc *http.Client, posters *Posters) *Tautulli {
	return &Tautulli{sourceBase: newBase(baseURL, hcOrDefault(hc), posters), key: key}
}

// Name returns "tautulli".
func (s *Tautulli) Name() string { return "tautulli" }

var sessionStates = map[string][2]string{
	"playing":   {"watching", "▶️ PLAYING"},
	"paused":    {"paused", "⏸️ PAUSED"},
	"buffering": {"buffering", "⏳ BUFFERING"},
}

var transcodeKeys = []string{
	"transcode_decision",
	"container_decision",
	"video_decision",
	"audio_decision",
	"subtitle_decision",
	"stream_video_decision",
	"stream_audio_decision",
	"stream_subtitle_decision",
}

// Activity returns one item per active session.
func (s *Tautulli) Activity(ctx context.Context) ([]frontpage.Activity, error) {
	q := url.Values{"apikey": {s.key}, "cmd": {"get_activity"}}
	doc, err := getJSON(ctx, s.http, s.url+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("tautulli activity: %w", err)
	}
	if doc.Get("response.result").String() != "success" {
		return nil, fmt.Errorf("tautulli activity: result %q: %w", doc.Get("response.result").String(), frontpage.ErrUpstream)
	}

	var out []frontpage.Activity
	for _, sess := range doc.Get("response.data.sessions").Array() {
		a, ok := s.session(ctx, sess)
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Tautulli) session(ctx context.Context, sess gjson.Result) (frontpage.Activity, bool) {
	state, ok := sessionStates[strings.ToLower(sess.Get("state").String())]
	if !ok {
		state = [2]string{"active", "📺 ACTIVE"}
	}
	user := orDefault(sess.Get("user").String(), "Unknown User")
	year := firstString(sess.Get("year"), sess.Get("originally_available_at"))

	var title, subtitle, posterURL string
	switch strings.ToLower(sess.Get("media_type").String()) {
	case "episode", "show", "tv":
		series := firstString(sess.Get("grandparent_title"), sess.Get("show_name"), sess.Get("title"))
		if series == "" {
			series = "Unknown Series"
		}
		if unknown(series) {
			return frontpage.Activity{}, false
		}
		episodeTitle := sess.Get("title").String()
		season := sess.Get("parent_media_index").Int()
		episode := sess.Get("media_index").Int()
		if season != 0 && episode != 0 {
			parts := []string{fmt.Sprintf("S%02dE%02d", season, episode)}
			if episodeTitle != "" {
				parts = append(parts, episodeTitle)
			}
			subtitle = user + " • " + strings.Join(parts, " - ")
		} else {
			subtitle = user + " • " + orDefault(episodeTitle, "Episode")
		}
		title = series
		poster := s.posters.Search(ctx, "tv", series, year)
		posterURL = resolve(poster, series, "tautulli")
		if poster.Title != "" {
			title = poster.Title
		}
	default:
		title = orDefault(sess.Get("title").String(), "Unknown Title")
		if unknown(title) {
			return frontpage.Activity{}, false
		}
		subtitle = user + " • " + orDefault(sess.Get("player").String(), "Unknown Player")
		poster := s.posters.Search(ctx, "movie", title, year)
		posterURL = resolve(poster, title, "tautulli")
		if poster.Title != "" {
			title = poster.Title
		}
	}

	transcoding := false
	for _, k := range transcodeKeys {
		if strings.EqualFold(sess.Get(k).String(), "transcode") {
			transcoding = true
			break
		}
	}

	return frontpage.Activity{
		ID:          "tautulli-" + orDefault(sess.Get("session_key").String(), "unknown"),
		Type:        state[0],
		Title:       title,
		Subtitle:    subtitle,
		User:        orDefault(sess.Get("user").String(), "Unknown"),
		Progress:    intPtr(int(sess.Get("progress_percent").Float())),
		Poster:      posterURL,
		Status:      state[0],
		StatusText:  state[1],
		Timestamp:   s.stamp(),
		Source:      "tautulli",
		Transcoding: transcoding,
	}, true
}
