// Package origin serves the dashboard itself: its static files and the
// JSON APIs the page polls.
package origin

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/frontpage/internal/health"
	"github.com/eugener/frontpage/internal/media"
	"github.com/eugener/frontpage/internal/stats"
)

// Deps holds what the origin router serves.
type Deps struct {
	StaticDir string            // "" = no static files
	Health    *health.Monitor   // nil = no health routes
	Media     *media.Aggregator // nil = no activity routes
	System    stats.Sampler     // nil = no host fields in /api/stats
	Now       func() time.Time
}

// New returns the origin router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	sd := stats.Deps{System: deps.System, Now: deps.Now}
	if deps.Health != nil {
		deps.Health.Mount(r)
		sd.Health = deps.Health
	}
	if deps.Media != nil {
		deps.Media.Mount(r)
		sd.Activity = deps.Media
	}
	r.Get("/api/stats", stats.Handler(sd))

	r.NotFound(apiNotFound)
	if deps.StaticDir != "" {
		files := http.FileServer(http.Dir(deps.StaticDir))
		r.Get("/index.html", serveIndex(deps.StaticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			if isAPI(r.URL.Path) {
				apiNotFound(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}
	return r
}

// serveIndex serves index.html in place; http.FileServer redirects it to "/".
func serveIndex(dir string) http.HandlerFunc {
	path := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil || fi.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "index.html", fi.ModTime(), f)
	}
}

func isAPI(path string) bool {
	return len(path) >= 5 && path[:5] == "/api/"
}

var notFoundBody = []byte(`{"error":"Not found"}` + "\n")

func apiNotFound(w http.ResponseWriter, r *http.Request) {
	if !isAPI(r.URL.Path) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write(notFoundBody)
}
