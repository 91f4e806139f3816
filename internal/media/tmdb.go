package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/cache"
)

const imageBase = "https://image.tmdb.org/t/p/w500"

// Poster is a resolved TMDb artwork lookup. The zero value means TMDb had no
// usable result.
type Poster struct {
	ID    int64
	URL   string
	Title string
}

// Posters resolves artwork through the TMDb API. A nil *Posters resolves
// nothing, so every caller falls back to placeholder posters.
type Posters struct {
	base string
	http *http.Client
	memo cache.Memo[Poster]
}

// NewPosters returns a TMDb client authenticating with token. Lookups are
// memoised in memo when it is non-nil. Returns nil when token is empty.
func NewPosters(baseURL, token string, hc *http.Client, memo cache.Memo[Poster]) *Posters {
	if token == "" {
		return nil
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Posters{
		base: strings.TrimSuffix(baseURL, "/"),
		http: bearerClient(hc, token),
		memo: memo,
	}
}

// ByID looks up a movie or tv show by TMDb id.
func (p *Posters) ByID(ctx context.Context, mediaType string, id int64) Poster {
	if p == nil || id == 0 {
		return Poster{}
	}
	key := "id:" + mediaType + ":" + strconv.FormatInt(id, 10)
	return p.lookup(ctx, key, func(ctx context.Context) (Poster, error) {
		doc, err := p.get(ctx, "/"+mediaType+"/"+strconv.FormatInt(id, 10), nil)
		if err != nil {
			return Poster{}, err
		}
		return posterFrom(doc), nil
	})
}

// Search returns the first search hit for title, optionally narrowed by year.
func (p *Posters) Search(ctx context.Context, mediaType, title, year string) Poster {
	if p == nil || title == "" {
		return Poster{}
	}
	q := url.Values{"query": {title}}
	if year != "" {
		if mediaType == "tv" {
			q.Set("first_air_date_year", year)
		} else {
			q.Set("year", year)
		}
	}
	key := "search:" + mediaType + ":" + q.Encode()
	return p.lookup(ctx, key, func(ctx context.Context) (Poster, error) {
		doc, err := p.get(ctx, "/search/"+mediaType, q)
		if err != nil {
			return Poster{}, err
		}
		first := doc.Get("results.0")
		if !first.Exists() {
			return Poster{}, nil
		}
		return posterFrom(first), nil
	})
}

// FromTVDB maps a TVDB series id to its TMDb id, or 0.
func (p *Posters) FromTVDB(ctx context.Context, tvdbID int64) int64 {
	if p == nil || tvdbID == 0 {
		return 0
	}
	key := "tvdb:" + strconv.FormatInt(tvdbID, 10)
	res := p.lookup(ctx, key, func(ctx context.Context) (Poster, error) {
		doc, err := p.get(ctx, "/find/"+strconv.FormatInt(tvdbID, 10), url.Values{"external_source": {"tvdb_id"}})
		if err != nil {
			return Poster{}, err
		}
		return Poster{ID: doc.Get("tv_results.0.id").Int()}, nil
	})
	return res.ID
}

// lookup memoises load under key. Errors resolve to the zero Poster and
// are not cached.
func (p *Posters) lookup(ctx context.Context, key string, load func(context.Context) (Poster, error)) Poster {
	var (
		res Poster
		err error
	)
	if p.memo != nil {
		res, err = p.memo.GetOrLoad(ctx, key, load)
	} else {
		res, err = load(ctx)
	}
	if err != nil {
		return Poster{}
	}
	return res
}

func (p *Posters) get(ctx context.Context, path string, q url.Values) (gjson.Result, error) {
	u := p.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return getJSON(ctx, p.http, u)
}

func posterFrom(doc gjson.Result) Poster {
	res := Poster{ID: doc.Get("id").Int()}
	if path := doc.Get("poster_path").String(); path != "" {
		res.URL = imageBase + path
	}
	res.Title = doc.Get("title").String()
	if res.Title == "" {
		res.Title = doc.Get("name").String()
	}
	return res
}

// getJSON fetches u and parses the body. Non-2xx statuses are errors.
func getJSON(ctx context.Context, hc *http.Client, u string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("GET %s: HTTP %d: %w", req.URL.Path, resp.StatusCode, frontpage.ErrUpstream)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("GET %s: invalid JSON: %w", req.URL.Path, frontpage.ErrUpstream)
	}
	return gjson.ParseBytes(body), nil
}

var posterColors = map[string]string{
	"jellyseerr": "6366f1",
	"radarr":     "fbbf24",
	"sonarr":     "3b82f6",
	"tautulli":   "f59e0b",
}

// FallbackPoster returns a placeholder poster showing the title's initial
// on the source's color.
func FallbackPoster(title, source string) string {
	letter := "?"
	if r, _ := utf8.DecodeRuneInString(title); title != "" && r != utf8.RuneError {
		letter = string(unicode.ToUpper(r))
	}
	bg, ok := posterColors[source]
	if !ok {
		bg = "1a1a1a"
	}
	return "https://placehold.co/300x450/" + bg + "/ffffff?text=" + url.QueryEscape(letter)
}

// resolve picks the TMDb poster when there is one and the placeholder otherwise.
func resolve(p Poster, title, source string) string {
	if p.URL != "" {
		return p.URL
	}
	return FallbackPoster(title, source)
}
