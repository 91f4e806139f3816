package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Mount registers the health routes on r.
func (m *Monitor) Mount(r chi.Router) {
	r.Get("/api/health/all", m.handleAll)
	r.Get("/api/health/check", m.handleCheck)
	r.Get("/api/health/{id}", m.handleOne)
}

func (m *Monitor) handleAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.All())
}

func (m *Monitor) handleOne(w http.ResponseWriter, r *http.Request) {
	h, ok := m.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Service not found"})
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (m *Monitor) handleCheck(w http.ResponseWriter, r *http.Request) {
	services := m.CheckAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Health check completed",
		"timestamp": m.now().Format(time.RFC3339),
		"services":  services,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
