package media

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// sourceRoutes maps each source to its per-source endpoint.
var sourceRoutes = map[string]string{
	"tautulli":   "/api/tautulli/activity",
	"jellyseerr": "/api/jellyseerr/requests",
	"sonarr":     "/api/sonarr/queue",
	"radarr":     "/api/radarr/queue",
}

// Mount registers the activity routes on r.
func (a *Aggregator) Mount(r chi.Router) {
	r.Get("/api/media/combined", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.Combined(r.Context()))
	})
	for _, src := range a.sources {
		path, ok := sourceRoutes[src.Name()]
		if !ok {
			continue
		}
		r.Get(path, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, a.Activity(r.Context(), src))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
