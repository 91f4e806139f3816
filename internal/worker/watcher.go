package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eugener/frontpage/internal/config"
)

const defaultDebounce = 2 * time.Second

// Upgrader moves the offline cache to a new version.
type Upgrader interface {
	Version() string
	Upgrade(ctx context.Context, version string) error
}

// ConfigWatcher reloads the config file when it changes and upgrades the
// offline cache when offline.version differs from the running one.
type ConfigWatcher struct {
	path     string
	upgrader Upgrader
	debounce time.Duration
}

// NewConfigWatcher creates a ConfigWatcher for the file at path.
func NewConfigWatcher(path string, u Upgrader) *ConfigWatcher {
	return &ConfigWatcher{path: filepath.Clean(path), upgrader: u, debounce: defaultDebounce}
}

// Name returns the worker identifier.
func (w *ConfigWatcher) Name() string { return "config_watcher" }

// Run watches the file's directory until ctx is cancelled. Replacing the
// file by rename counts as a change.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != w.path || e.Has(fsnotify.Chmod) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.LogAttrs(ctx, slog.LevelError, "config watcher error",
				slog.String("error", err.Error()),
			)

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *ConfigWatcher) reload(ctx context.Context) {
	cfg, err := config.Load(w.path)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "config reload failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	current := w.upgrader.Version()
	next := cfg.Offline.Version
	if next == current {
		slog.LogAttrs(ctx, slog.LevelDebug, "config reloaded, offline version unchanged",
			slog.String("version", current),
		)
		return
	}
	slog.LogAttrs(ctx, slog.LevelInfo, "offline version changed, upgrading",
		slog.String("from", current),
		slog.String("to", next),
	)
	if err := w.upgrader.Upgrade(ctx, next); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "offline upgrade failed",
			slog.String("version", next),
			slog.String("error", err.Error()),
		)
	}
}
