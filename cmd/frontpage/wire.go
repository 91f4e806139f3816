package main

import (
	"context"
	"fmt"
	"net/http"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/cache"
	"github.com/eugener/frontpage/internal/circuitbreaker"
	"github.com/eugener/frontpage/internal/config"
	"github.com/eugener/frontpage/internal/health"
	"github.com/eugener/frontpage/internal/media"
	"github.com/eugener/frontpage/internal/offline"
	"github.com/eugener/frontpage/internal/storage"
	"github.com/eugener/frontpage/internal/storage/redis"
	"github.com/eugener/frontpage/internal/storage/sqlite"
	"github.com/eugener/frontpage/internal/telemetry"
	"github.com/eugener/frontpage/internal/upstream"
)

// memoryStore adapts cache.Storage, which has nothing to ping or close.
type memoryStore struct{ *cache.Storage }

func (memoryStore) Ping(context.Context) error { return nil }
func (memoryStore) Close() error               { return nil }

func openStorage(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Backend {
	case "sqlite":
		return sqlite.New(ctx, sc.DSN)
	case "redis":
		return redis.Dial(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
	case "memory", "":
		return memoryStore{cache.NewStorage(sc.MaxEntries)}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

func offlineConfig(oc config.OfflineConfig) offline.Config {
	return offline.Config{
		Prefix:        oc.Prefix,
		Version:       oc.Version,
		StaticAssets:  oc.StaticAssets,
		APIMarker:     oc.APIMarker,
		ImagesSegment: oc.ImagesSegment,
		APITimeout:    oc.APITimeout,
		Bucket:        oc.Bucket,
		SyncTag:       oc.SyncTag,
		SyncEndpoint:  oc.SyncEndpoint,
		OriginHost:    oc.OriginHost,
	}
}

// newNetwork returns the Fetcher behind the offline cache: the remote origin
// when one is configured, the in-process origin router otherwise.
func newNetwork(oc config.OriginConfig, local http.Handler, hc *http.Client, metrics *telemetry.Metrics) (frontpage.Fetcher, error) {
	if oc.UpstreamURL == "" {
		return upstream.HandlerFetcher{Handler: local}, nil
	}
	opts := []upstream.ClientOption{
		upstream.WithBreakers(circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())),
	}
	if metrics != nil {
		opts = append(opts, upstream.WithErrorHook(func(host string) {
			metrics.UpstreamErrors.WithLabelValues(host).Inc()
		}))
	}
	return upstream.NewClient(oc.UpstreamURL, hc, opts...)
}

func newMonitor(hc config.HealthConfig, client *http.Client, metrics *telemetry.Metrics) *health.Monitor {
	if len(hc.Services) == 0 {
		return nil
	}
	services := make([]health.Service, len(hc.Services))
	for i, s := range hc.Services {
		services[i] = health.Service{
			ID:             s.ID,
			Name:           s.Name,
			URL:            s.URL,
			HealthEndpoint: s.HealthEndpoint,
			Timeout:        s.Timeout,
			ExpectedStatus: s.ExpectedStatus,
			Headers:        s.Headers,
		}
	}
	return health.NewMonitor(services, client,
		health.WithInterval(hc.Interval),
		health.WithMetrics(metrics),
	)
}

func newAggregator(mc config.MediaConfig, hc *http.Client) (*media.Aggregator, error) {
	client := &http.Client{Transport: hc.Transport, Timeout: mc.Timeout}

	memo, err := cache.NewMemory[media.Poster](4096, mc.PosterTTL)
	if err != nil {
		return nil, err
	}
	posters := media.NewPosters(mc.TMDB.BaseURL, mc.TMDB.Token, client, memo)

	var sources []media.Source
	if s := mc.Tautulli; s.Enabled() {
		sources = append(sources, media.NewTautulli(s.URL, s.Key, client, posters))
	}
	if s := mc.Jellyseerr; s.Enabled() {
		sources = append(sources, media.NewJellyseerr(s.URL, s.Key, client, posters))
	}
	if s := mc.Sonarr; s.Enabled() {
		sources = append(sources, media.NewSonarr(s.URL, s.Key, client, posters))
	}
	if s := mc.Radarr; s.Enabled() {
		sources = append(sources, media.NewRadarr(s.URL, s.Key, client, posters))
	}
	return media.NewAggregator(mc.Limit, sources...), nil
}
