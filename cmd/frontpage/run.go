package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/eugener/frontpage/internal/auth"
	"github.com/eugener/frontpage/internal/config"
	"github.com/eugener/frontpage/internal/offline"
	"github.com/eugener/frontpage/internal/offline/notify"
	"github.com/eugener/frontpage/internal/origin"
	"github.com/eugener/frontpage/internal/ratelimit"
	"github.com/eugener/frontpage/internal/server"
	"github.com/eugener/frontpage/internal/stats"
	"github.com/eugener/frontpage/internal/telemetry"
	"github.com/eugener/frontpage/internal/upstream"
	"github.com/eugener/frontpage/internal/worker"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting frontpage", "version", version, "addr", cfg.Server.Addr)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if t := cfg.Telemetry.Tracing; t.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
			ServiceName: "frontpage",
			Version:     version,
			Endpoint:    t.Endpoint,
			SampleRate:  t.SampleRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	// Open cache storage
	store, err := openStorage(ctx, cfg.Offline.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	// Outbound HTTP shares one DNS cache.
	resolver := &dnscache.Resolver{}
	hc := upstream.NewHTTPClient(resolver)

	// Dashboard origin
	monitor := newMonitor(cfg.Health, hc, metrics)
	aggregator, err := newAggregator(cfg.Media, hc)
	if err != nil {
		return err
	}
	network, err := newNetwork(cfg.Origin, origin.New(origin.Deps{
		StaticDir: cfg.Origin.StaticDir,
		Health:    monitor,
		Media:     aggregator,
		System:    stats.NewCollector(cfg.Origin.NASPath),
	}), hc, metrics)
	if err != nil {
		return err
	}

	// Offline cache
	feed := notify.NewFeed(notify.DefaultCapacity)
	manager := offline.New(offlineConfig(cfg.Offline), offline.Deps{
		Storage:  store,
		Network:  network,
		Notifier: feed,
		Metrics:  metrics,
	})
	if err := manager.Install(ctx); err != nil {
		slog.Error("offline cache install failed, passing requests through", "error", err)
	} else if err := manager.Activate(ctx); err != nil {
		slog.Error("offline cache activate failed, passing requests through", "error", err)
	}

	limiter := ratelimit.NewRegistry(cfg.Server.ControlRPM)
	admin, err := auth.NewAdminKeyAuth(cfg.Server.AdminKeys)
	if err != nil {
		return err
	}
	if !admin.Enabled() {
		slog.Warn("no server.admin_keys configured, /_sw mutations are disabled")
	}

	// Background workers
	workers := []worker.Worker{
		worker.NewSyncWorker(manager, cfg.Offline.SyncTag, cfg.Offline.SyncInterval),
		worker.NewRetentionWorker(manager, cfg.Offline.Retention, metrics),
		worker.NewConfigWatcher(configPath, manager),
		worker.NewPeriodic("dns_refresh", 5*time.Minute, func(context.Context) {
			resolver.Refresh(true)
		}),
		worker.NewPeriodic("ratelimit_evict", time.Minute, func(context.Context) {
			limiter.EvictStale(time.Now().Add(-10 * time.Minute))
		}),
	}
	if monitor != nil {
		workers = append(workers, monitor)
	}
	runner := worker.NewRunner(workers...)
	runnerErr := make(chan error, 1)
	go func() { runnerErr <- runner.Run(ctx) }()

	// Create HTTP server
	handler := server.New(server.Deps{
		Offline:        manager,
		Auth:           admin,
		Feed:           feed,
		Limiter:        limiter,
		ReadyCheck:     store.Ping,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("frontpage ready", "addr", cfg.Server.Addr, "offline_version", manager.Version())

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	case err := <-runnerErr:
		if err != nil {
			return err
		}
	}

	// Shutdown
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("frontpage stopped")
	return nil
}
