package offline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/telemetry"
)

// Notification defaults for system alerts.
const (
	alertType = "system-alert"
	alertIcon = "/images/guyfox.png"
)

var alertActions = []frontpage.NotificationAction{
	{Action: "view", Title: "View Dashboard"},
	{Action: "dismiss", Title: "Dismiss"},
}

// Sync handles a background-sync trigger. Only the configured tag does any
// work: one fetch of the sync endpoint whose 2xx response overwrites the
// endpoint's entry in the API container. Failures are logged, never returned.
// The result reports whether the tag was recognised.
func (m *Manager) Sync(ctx context.Context, tag string) bool {
	gen := m.active.Load()
	if gen == nil || tag != gen.cfg.SyncTag {
		return false
	}
	endpoint := gen.cfg.SyncEndpoint

	ctx, span := m.tracer.Start(ctx, "offline.sync")
	err := m.sync(ctx, gen, endpoint)
	telemetry.EndSpan(span, err)

	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "background sync failed",
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
		return true
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "background sync completed",
		slog.String("endpoint", endpoint),
	)
	return true
}

func (m *Manager) sync(ctx context.Context, gen *generation, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if gen.cfg.OriginHost != "" {
		req.Host = gen.cfg.OriginHost
	}
	resp, err := m.network.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if !ok(resp.StatusCode) {
		resp.Body.Close()
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, frontpage.ErrUpstream)
	}
	entry, replay, err := capture(resp, m.now())
	if err != nil {
		if replay != nil {
			replay.Body.Close()
		}
		return err
	}
	return gen.api.Put(ctx, endpoint, entry)
}

// Push handles a push message. A "system-alert" payload is shown through the
// Notifier; other types are ignored. The result reports whether a
// notification was shown.
func (m *Manager) Push(ctx context.Context, payload []byte) (bool, error) {
	if !gjson.ValidBytes(payload) {
		return false, fmt.Errorf("push payload: %w", frontpage.ErrBadRequest)
	}
	data := gjson.ParseBytes(payload)
	if data.Get("type").String() != alertType {
		slog.LogAttrs(ctx, slog.LevelDebug, "ignoring push message",
			slog.String("type", data.Get("type").String()),
		)
		return false, nil
	}

	n := frontpage.Notification{
		Title:              data.Get("title").String(),
		Body:               data.Get("message").String(),
		Icon:               alertIcon,
		Badge:              alertIcon,
		Tag:                data.Get("tag").String(),
		RequireInteraction: data.Get("critical").Bool(),
		Actions:            alertActions,
		ShownAt:            m.now(),
	}
	if n.Tag == "" {
		n.Tag = alertType
	}

	if m.notifier == nil {
		slog.LogAttrs(ctx, slog.LevelInfo, "system alert",
			slog.String("title", n.Title),
			slog.String("tag", n.Tag),
		)
		return false, nil
	}
	if err := m.notifier.Show(ctx, n); err != nil {
		return false, fmt.Errorf("show notification: %w", err)
	}
	return true, nil
}

// NotificationClick returns the URL to open for a notification action, or
// "" when the action opens nothing.
func NotificationClick(action string) string {
	if action == "view" {
		return "/"
	}
	return ""
}
