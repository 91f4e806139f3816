package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/storage"
	"github.com/eugener/frontpage/internal/telemetry"
)

// State is the lifecycle state of the most recent version.
type State int

const (
	StateIdle State = iota
	StateInstalling
	StateInstalled
	StateActive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Deps holds the collaborators of a Manager.
type Deps struct {
	Storage  frontpage.CacheStorage
	Network  frontpage.Fetcher  // the origin
	Notifier frontpage.Notifier // nil = push messages are logged only
	Metrics  *telemetry.Metrics // nil = no metrics
	Now      func() time.Time   // nil = time.Now
}

// generation is one installed version and its open containers.
type generation struct {
	cfg    Config
	names  Names
	static frontpage.CacheContainer
	api    frontpage.CacheContainer
}

// Manager intercepts requests for the dashboard origin once a version is
// active. Until then requests pass straight through to the origin. Requests
// naming any other host are refused.
type Manager struct {
	storage  frontpage.CacheStorage
	network  frontpage.Fetcher
	notifier frontpage.Notifier
	metrics  *telemetry.Metrics
	now      func() time.Time
	tracer   trace.Tracer

	strategies map[RouteKind]strategy

	lifecycle sync.Mutex // serializes Install, Activate and Upgrade

	mu      sync.RWMutex
	cfg     Config // target of the next Install
	state   State
	pending *generation
	lastErr error

	active atomic.Pointer[generation]
}

// New returns an idle Manager. Call Install and Activate before it intercepts.
func New(cfg Config, deps Deps) *Manager {
	m := &Manager{
		storage:  deps.Storage,
		network:  deps.Network,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      deps.Now,
		tracer:   telemetry.Tracer("frontpage/offline"),
		cfg:      cfg.withDefaults(),
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.strategies = map[RouteKind]strategy{
		RouteAPI:    m.networkFirst,
		RouteStatic: m.cacheFirst(offlineShell),
		RouteImage:  m.cacheFirst(offlineImage),
		RouteOther:  m.passThrough,
	}
	return m
}

// Install pre-caches the static manifest and opens the API container. It is
// all-or-nothing: if any asset fails, nothing is stored and the error wraps
// frontpage.ErrInstallFailed.
func (m *Manager) Install(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	return m.install(ctx, cfg)
}

func (m *Manager) install(ctx context.Context, cfg Config) (err error) {
	ctx, span := m.tracer.Start(ctx, "offline.install")
	defer func() { telemetry.EndSpan(span, err) }()

	m.setState(StateInstalling, nil)
	names := cfg.Names()
	slog.LogAttrs(ctx, slog.LevelInfo, "installing offline cache",
		slog.String("version", cfg.Version),
		slog.Int("assets", len(cfg.StaticAssets)),
	)

	entries, err := m.fetchManifest(ctx, cfg)
	if err != nil {
		return m.failInstall(ctx, cfg, err)
	}

	gen := &generation{cfg: cfg, names: names}
	if gen.static, err = m.storage.Open(ctx, names.Static); err != nil {
		return m.failInstall(ctx, cfg, err)
	}
	for i, asset := range cfg.StaticAssets {
		if err := gen.static.Put(ctx, asset, entries[i]); err != nil {
			return m.failInstall(ctx, cfg, err)
		}
	}
	if gen.api, err = m.storage.Open(ctx, names.API); err != nil {
		return m.failInstall(ctx, cfg, err)
	}

	m.mu.Lock()
	m.pending = gen
	m.state = StateInstalled
	m.lastErr = nil
	m.mu.Unlock()

	slog.LogAttrs(ctx, slog.LevelInfo, "offline cache installed",
		slog.String("version", cfg.Version),
	)
	return nil
}

func (m *Manager) failInstall(ctx context.Context, cfg Config, err error) error {
	err = fmt.Errorf("%w: %w", frontpage.ErrInstallFailed, err)
	m.discard(ctx, cfg.Names())
	m.setState(StateFailed, err)
	slog.LogAttrs(ctx, slog.LevelError, "offline cache install failed",
		slog.String("version", cfg.Version),
		slog.String("error", err.Error()),
	)
	return err
}

// discard deletes the containers a failed install may have written, unless
// they are the ones the active or pending version serves from.
func (m *Manager) discard(ctx context.Context, names Names) {
	if gen := m.active.Load(); gen != nil && gen.names == names {
		return
	}
	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()
	if pending != nil && pending.names == names {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, name := range []string{names.Static, names.API} {
		if _, err := m.storage.Delete(ctx, name); err != nil {
			slog.LogAttrs(ctx, slog.LevelWarn, "failed to delete partial container",
				slog.String("container", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// fetchManifest fetches every asset in parallel. Results are indexed like
// cfg.StaticAssets.
func (m *Manager) fetchManifest(ctx context.Context, cfg Config) ([]*frontpage.CachedResponse, error) {
	entries := make([]*frontpage.CachedResponse, len(cfg.StaticAssets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, asset := range cfg.StaticAssets {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, asset, nil)
			if err != nil {
				return fmt.Errorf("asset %s: %w", asset, err)
			}
			if cfg.OriginHost != "" {
				req.Host = cfg.OriginHost
			}
			resp, err := m.network.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("asset %s: %w", asset, err)
			}
			if !ok(resp.StatusCode) {
				resp.Body.Close()
				return fmt.Errorf("asset %s: HTTP %d: %w", asset, resp.StatusCode, frontpage.ErrUpstream)
			}
			entry, replay, err := capture(resp, m.now())
			if err != nil {
				if replay != nil {
					replay.Body.Close()
				}
				return fmt.Errorf("asset %s: %w", asset, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Activate makes the installed version current. Containers under the prefix
// that belong to no current name are deleted first; interception with the
// new version starts as soon as Activate returns.
func (m *Manager) Activate(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.activate(ctx)
}

func (m *Manager) activate(ctx context.Context) (err error) {
	m.mu.RLock()
	gen := m.pending
	m.mu.RUnlock()
	if gen == nil {
		return fmt.Errorf("activate: no installed version: %w", frontpage.ErrNotActive)
	}

	ctx, span := m.tracer.Start(ctx, "offline.activate")
	defer func() { telemetry.EndSpan(span, err) }()

	names, err := m.storage.Names(ctx)
	if err != nil {
		err = fmt.Errorf("activate: list containers: %w", err)
		m.setState(StateFailed, err)
		return err
	}
	var errs []error
	for _, name := range names {
		if !strings.HasPrefix(name, gen.cfg.Prefix) || gen.names.owns(name) {
			continue
		}
		deleted, err := m.storage.Delete(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", name, err))
			continue
		}
		if deleted {
			slog.LogAttrs(ctx, slog.LevelInfo, "deleted stale cache container",
				slog.String("name", name),
			)
			if m.metrics != nil {
				m.metrics.ContainersDeleted.Inc()
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		err = fmt.Errorf("activate: %w", err)
		m.setState(StateFailed, err)
		return err
	}

	m.active.Store(gen)
	m.mu.Lock()
	m.pending = nil
	m.state = StateActive
	m.lastErr = nil
	m.mu.Unlock()

	slog.LogAttrs(ctx, slog.LevelInfo, "offline cache active",
		slog.String("version", gen.cfg.Version),
	)
	return nil
}

// Upgrade installs and activates version. If the install fails the current
// version stays in control.
func (m *Manager) Upgrade(ctx context.Context, version string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	cfg := m.cfg
	cfg.Version = version
	m.mu.Unlock()

	if err := m.install(ctx, cfg); err != nil {
		return err
	}
	if err := m.activate(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// setState records a lifecycle transition. A failure while an older version
// is active leaves that version serving.
func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	m.state = s
	m.lastErr = err
	m.mu.Unlock()
}

// Snapshot is the externally visible lifecycle status.
type Snapshot struct {
	State      string   `json:"state"`
	Version    string   `json:"version,omitempty"` // active version
	Pending    string   `json:"pending,omitempty"` // installed, not yet active
	Containers Names    `json:"containers"`
	Stored     []string `json:"stored"`
	LastError  string   `json:"last_error,omitempty"`
}

// Snapshot reports the lifecycle state and the container names in storage.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	s := Snapshot{State: m.state.String()}
	if m.pending != nil {
		s.Pending = m.pending.cfg.Version
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	cfg := m.cfg
	m.mu.RUnlock()

	if gen := m.active.Load(); gen != nil {
		s.Version = gen.cfg.Version
		s.Containers = gen.names
	} else {
		s.Containers = cfg.Names()
	}
	names, err := m.storage.Names(ctx)
	if err != nil {
		return s, err
	}
	s.Stored = names
	return s, nil
}

// Active reports whether a version is intercepting requests.
func (m *Manager) Active() bool { return m.active.Load() != nil }

// Version returns the target version of the next Install.
func (m *Manager) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Version
}

// Classify reports the route kind of path under the current configuration.
func (m *Manager) Classify(path string) RouteKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Classify(path)
}

// Cleanup removes expired API entries older than cutoff from the active
// version, in one query when the storage is a storage.Expirer and by
// scanning keys otherwise.
func (m *Manager) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	gen := m.active.Load()
	if gen == nil {
		return 0, nil
	}
	if e, ok := m.storage.(storage.Expirer); ok {
		return e.PurgeExpired(ctx, gen.names.API, cutoff)
	}
	keys, err := gen.api.Keys(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		entry, err := gen.api.Match(ctx, k)
		if errors.Is(err, frontpage.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if entry.ExpiresAt.IsZero() || !entry.ExpiresAt.Before(cutoff) {
			continue
		}
		if err := gen.api.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
