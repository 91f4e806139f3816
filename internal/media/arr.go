package media

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	frontpage "github.com/eugener/frontpage/internal"
)

// Sonarr reads the Sonarr v3 download queue.
type Sonarr struct{ sourceBase }

// NewSonarr returns a Sonarr source. baseURL includes the API root, e.g.
// http://host:8989/api/v3.
func NewSonarr(baseURL, key string, hc *http.Client, posters *Posters) *Sonarr {
	return &Sonarr{newBase(baseURL, withAPIKey(hcOrDefault(hc), key), posters)}
}

// Name returns "sonarr".
func (s *Sonarr) Name() string { return "sonarr" }

// Activity returns one item per queued episode.
func (s *Sonarr) Activity(ctx context.Context) ([]frontpage.Activity, error) {
	doc, err := getJSON(ctx, s.http, s.url+"/queue")
	if err != nil {
		return nil, fmt.Errorf("sonarr queue: %w", err)
	}

	var out []frontpage.Activity
	for _, item := range doc.Get("records").Array() {
		series := item.Get("series")
		seriesTitle := orDefault(series.Get("title").String(), "Unknown Series")
		if unknown(seriesTitle) {
			continue
		}
		season := item.Get("episode.seasonNumber").Int()
		episode := item.Get("episode.episodeNumber").Int()
		title := seriesTitle + " - Episode"
		if season != 0 && episode != 0 {
			title = fmt.Sprintf("%s - S%02dE%02d", seriesTitle, season, episode)
		}

		tmdbID := series.Get("tmdbId").Int()
		if tmdbID == 0 {
			tvdbID := series.Get("tvdbId").Int()
			if tvdbID == 0 {
				tvdbID = s.lookupID(ctx, "/series/", series.Get("id").Int(), "tvdbId")
			}
			tmdbID = s.posters.FromTVDB(ctx, tvdbID)
		}
		poster := s.posters.ByID(ctx, "tv", tmdbID)

		kind, text := queueState(item.Get("status").String())
		out = append(out, frontpage.Activity{
			ID:         "sonarr-" + item.Get("id").String(),
			Type:       kind,
			Title:      title,
			Subtitle:   orDefault(item.Get("episode.title").String(), "Unknown Episode"),
			Progress:   intPtr(progress(item.Get("size").Float(), item.Get("sizeleft").Float())),
			Poster:     resolve(poster, seriesTitle, "sonarr"),
			Status:     kind,
			StatusText: text,
			Timestamp:  orDefault(item.Get("added").String(), s.stamp()),
			Source:     "sonarr",
		})
	}
	return out, nil
}

// Radarr reads the Radarr v3 download queue.
type Radarr struct{ sourceBase }

// NewRadarr returns a Radarr source. baseURL includes the API root, e.g.
// http://host:7878/api/v3.
func NewRadarr(baseURL, key string, hc *http.Client, posters *Posters) *Radarr {
	return &Radarr{newBase(baseURL, withAPIKey(hcOrDefault(hc), key), posters)}
}

// Name returns "radarr".
func (s *Radarr) Name() string { return "radarr" }

// Activity returns one item per movie; a movie split over several queue
// records appears once.
func (s *Radarr) Activity(ctx context.Context) ([]frontpage.Activity, error) {
	doc, err := getJSON(ctx, s.http, s.url+"/queue")
	if err != nil {
		return nil, fmt.Errorf("radarr queue: %w", err)
	}

	seen := make(map[int64]struct{})
	var out []frontpage.Activity
	for _, item := range doc.Get("records").Array() {
		movie := item.Get("movie")
		movieID := item.Get("movieId").Int()
		if !item.Get("movieId").Exists() {
			movieID = movie.Get("id").Int()
		}
		if _, dup := seen[movieID]; dup {
			continue
		}
		seen[movieID] = struct{}{}

		title := firstString(movie.Get("title"), item.Get("title"), item.Get("movieTitle"))
		if title == "" {
			title = "Unknown Movie"
		}
		tmdbID := movie.Get("tmdbId").Int()
		if tmdbID == 0 {
			tmdbID = s.lookupID(ctx, "/movie/", movieID, "tmdbId")
		}
		poster := s.posters.ByID(ctx, "movie", tmdbID)
		posterURL := resolve(poster, title, "radarr")
		if poster.Title != "" {
			title = poster.Title
		}
		if unknown(title) {
			continue
		}

		kind, text := queueState(item.Get("status").String())
		out = append(out, frontpage.Activity{
			ID:         "radarr-" + item.Get("id").String() + "-" + strconv.FormatInt(movieID, 10),
			Type:       kind,
			Title:      title,
			Subtitle:   "Movie",
			Progress:   intPtr(progress(item.Get("size").Float(), item.Get("sizeleft").Float())),
			Poster:     posterURL,
			Status:     kind,
			StatusText: text,
			Timestamp:  orDefault(item.Get("added").String(), s.stamp()),
			Source:     "radarr",
		})
	}
	return out, nil
}

// lookupID reads field from the *arr resource at path+id. Failures yield 0.
func (b sourceBase) lookupID(ctx context.Context, path string, id int64, field string) int64 {
	if id == 0 {
		return 0
	}
	doc, err := getJSON(ctx, b.http, b.url+path+strconv.FormatInt(id, 10))
	if err != nil {
		return 0
	}
	return doc.Get(field).Int()
}

func hcOrDefault(hc *http.Client) *http.Client {
	if hc == nil {
		return http.DefaultClient
	}
	return hc
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstString(rs ...gjson.Result) string {
	for _, r := range rs {
		if s := r.String(); s != "" {
			return s
		}
	}
	return ""
}
