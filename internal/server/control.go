package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/offline"
)

// maxPushBytes bounds push and sync request bodies.
const maxPushBytes = 64 << 10

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Offline.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Offline.Install(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Offline.Activate(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.handleStatus(w, r)
}

type syncRequest struct {
	Tag string `json:"tag"`
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPushBytes)).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w: %w", err, frontpage.ErrBadRequest))
		return
	}
	handled := s.deps.Offline.Sync(r.Context(), req.Tag)
	writeJSON(w, http.StatusOK, map[string]bool{"handled": handled})
}

func (s *server) handlePush(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPushBytes))
	if err != nil {
		writeError(w, fmt.Errorf("read push payload: %w: %w", err, frontpage.ErrBadRequest))
		return
	}
	shown, err := s.deps.Offline.Push(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shown": shown})
}

func (s *server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		writeError(w, frontpage.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Feed.List())
}

// handleNotificationClick closes the notification and, for the view
// action, sends the client to the dashboard.
func (s *server) handleNotificationClick(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		writeError(w, frontpage.ErrNotFound)
		return
	}
	tag := chi.URLParam(r, "tag")
	if !s.deps.Feed.Close(tag) {
		writeError(w, fmt.Errorf("notification %q: %w", tag, frontpage.ErrNotFound))
		return
	}
	action := r.URL.Query().Get("action")
	slog.LogAttrs(r.Context(), slog.LevelInfo, "notification clicked",
		slog.String("tag", tag),
		slog.String("action", action),
	)
	if target := offline.NotificationClick(action); target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
