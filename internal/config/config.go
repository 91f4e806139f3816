// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level frontpage configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Offline   OfflineConfig   `yaml:"offline"`
	Origin    OriginConfig    `yaml:"origin"`
	Health    HealthConfig    `yaml:"health"`
	Media     MediaConfig     `yaml:"media"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ControlRPM      int64         `yaml:"control_rpm"` // per-client limit on /_sw mutations, 0 = unlimited
	AdminKeys       []string      `yaml:"admin_keys"`  // Bearer keys for /_sw mutations; none = mutations disabled
}

// OfflineConfig controls the offline cache layer in front of the origin.
type OfflineConfig struct {
	Prefix        string        `yaml:"prefix"`         // container name prefix
	Version       string        `yaml:"version"`        // bump to drop old containers
	StaticAssets  []string      `yaml:"static_assets"`  // pre-cached on install
	APIMarker     string        `yaml:"api_marker"`     // path segment marking API calls
	ImagesSegment string        `yaml:"images_segment"` // path segment marking images
	APITimeout    time.Duration `yaml:"api_timeout"`
	Bucket        time.Duration `yaml:"bucket"` // API cache key time bucket width
	SyncTag       string        `yaml:"sync_tag"`
	SyncEndpoint  string        `yaml:"sync_endpoint"`
	SyncInterval  time.Duration `yaml:"sync_interval"` // 0 = no periodic trigger
	Retention     time.Duration `yaml:"retention"`     // 0 = keep API entries forever
	OriginHost    string        `yaml:"origin_host"`   // "" = any Host header is same-origin
	Storage       StorageConfig `yaml:"storage"`
}

// StorageConfig selects the cache container backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // "memory", "sqlite", "redis"
	DSN           string `yaml:"dsn"`     // sqlite file path or ":memory:"
	MaxEntries    int    `yaml:"max_entries"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// OriginConfig describes where the dashboard itself is served from.
type OriginConfig struct {
	StaticDir   string `yaml:"static_dir"`
	UpstreamURL string `yaml:"upstream_url"` // "" = serve the origin in-process
	NASPath     string `yaml:"nas_path"`     // mount reported as "nas" in /api/stats; "" = null
}

// HealthConfig lists the services polled by the health monitor.
type HealthConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Services []ServiceEntry `yaml:"services"`
}

// ServiceEntry is a monitored service definition.
type ServiceEntry struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	URL            string            `yaml:"url"`
	HealthEndpoint string            `yaml:"health_endpoint"`
	Timeout        time.Duration     `yaml:"timeout"`
	ExpectedStatus []int             `yaml:"expected_status"`
	Headers        map[string]string `yaml:"headers"`
}

// MediaConfig holds credentials for the activity feed sources.
type MediaConfig struct {
	Tautulli   SourceEntry   `yaml:"tautulli"`
	Jellyseerr SourceEntry   `yaml:"jellyseerr"`
	Sonarr     SourceEntry   `yaml:"sonarr"`
	Radarr     SourceEntry   `yaml:"radarr"`
	TMDB       TMDBEntry     `yaml:"tmdb"`
	Timeout    time.Duration `yaml:"timeout"`
	PosterTTL  time.Duration `yaml:"poster_ttl"`
	Limit      int           `yaml:"limit"`
}

// SourceEntry is a single *arr-style API endpoint.
type SourceEntry struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// Enabled reports whether the source is configured.
func (s SourceEntry) Enabled() bool { return s.URL != "" }

// TMDBEntry holds TMDb API settings.
type TMDBEntry struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"` // v4 read access token
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// DefaultStaticAssets is the page shell manifest pre-cached on install.
var DefaultStaticAssets = []string{
	"/",
	"/index.html",
	"/css/styles.css",
	"/js/main.js",
	"/js/monitor.js",
	"/js/config.js",
	"/images/guyfox.png",
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ControlRPM:      60,
		},
		Offline: OfflineConfig{
			Prefix:        "media-frontpage-",
			Version:       "v1.2",
			StaticAssets:  append([]string(nil), DefaultStaticAssets...),
			APIMarker:     "/api/",
			ImagesSegment: "/images/",
			APITimeout:    8 * time.Second,
			Bucket:        30 * time.Second,
			SyncTag:       "background-stats-sync",
			SyncEndpoint:  "/api/stats",
			Retention:     24 * time.Hour,
			Storage: StorageConfig{
				Backend:    "memory",
				DSN:        "frontpage.db",
				MaxEntries: 10_000,
			},
		},
		Origin: OriginConfig{
			StaticDir: "web",
		},
		Health: HealthConfig{
			Interval: 30 * time.Second,
		},
		Media: MediaConfig{
			TMDB:      TMDBEntry{BaseURL: "https://api.themoviedb.org/3"},
			Timeout:   8 * time.Second,
			PosterTTL: 6 * time.Hour,
			Limit:     20,
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	data = expandEnv(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyServiceDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyServiceDefaults fills per-service fields left empty in the file.
func (c *Config) applyServiceDefaults() {
	for i := range c.Health.Services {
		s := &c.Health.Services[i]
		if s.Name == "" {
			s.Name = s.ID
		}
		if s.Timeout <= 0 {
			s.Timeout = 5 * time.Second
		}
		if len(s.ExpectedStatus) == 0 {
			s.ExpectedStatus = []int{200}
		}
	}
}
