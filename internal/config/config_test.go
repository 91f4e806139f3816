package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  addr: ":9090"
  read_timeout: 10s
offline:
  version: v2.0
  api_timeout: 3s
  storage:
    backend: sqlite
    dsn: ":memory:"
origin:
  static_dir: /srv/frontpage
health:
  services:
    - id: sonarr
      url: http://192.168.1.24:8989
      health_endpoint: /api/v3/system/status
      headers:
        X-Api-Key: abc
    - id: plex
      name: Plex
      url: http://192.168.1.24:32400
      expected_status: [200, 302]
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q, want %q", cfg.Server.Addr, ":9090")
	}
	if cfg.Offline.Version != "v2.0" {
		t.Errorf("version = %q, want %q", cfg.Offline.Version, "v2.0")
	}
	if cfg.Offline.APITimeout != 3*time.Second {
		t.Errorf("api_timeout = %v, want 3s", cfg.Offline.APITimeout)
	}
	if cfg.Offline.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q, want sqlite", cfg.Offline.Storage.Backend)
	}
	if len(cfg.Health.Services) != 2 {
		t.Fatalf("services count = %d, want 2", len(cfg.Health.Services))
	}

	sonarr := cfg.Health.Services[0]
	if sonarr.Name != "sonarr" {
		t.Errorf("name default = %q, want id", sonarr.Name)
	}
	if sonarr.Timeout != 5*time.Second {
		t.Errorf("timeout default = %v, want 5s", sonarr.Timeout)
	}
	if len(sonarr.ExpectedStatus) != 1 || sonarr.ExpectedStatus[0] != 200 {
		t.Errorf("expected_status default = %v, want [200]", sonarr.ExpectedStatus)
	}
	if sonarr.Headers["X-Api-Key"] != "abc" {
		t.Errorf("headers = %v", sonarr.Headers)
	}
	if got := cfg.Health.Services[1].ExpectedStatus; len(got) != 2 {
		t.Errorf("plex expected_status = %v", got)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("TEST_SONARR_KEY", "sk-secret-123")

	result := expandEnv([]byte("key: ${TEST_SONARR_KEY}"))
	if string(result) != "key: sk-secret-123" {
		t.Errorf("expandEnv = %q, want %q", string(result), "key: sk-secret-123")
	}

	// Unknown variables are left as-is.
	result = expandEnv([]byte("key: ${TEST_FRONTPAGE_UNSET}"))
	if string(result) != "key: ${TEST_FRONTPAGE_UNSET}" {
		t.Errorf("expandEnv unset = %q", string(result))
	}

	cfg, err := Parse([]byte("media:\n  sonarr:\n    url: http://sonarr\n    key: ${TEST_SONARR_KEY}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Media.Sonarr.Key != "sk-secret-123" {
		t.Errorf("sonarr key = %q", cfg.Media.Sonarr.Key)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q, want %q", cfg.Server.Addr, ":8080")
	}
	o := cfg.Offline
	if o.Prefix != "media-frontpage-" || o.Version != "v1.2" {
		t.Errorf("prefix/version = %q/%q", o.Prefix, o.Version)
	}
	if o.APITimeout != 8*time.Second {
		t.Errorf("api_timeout = %v, want 8s", o.APITimeout)
	}
	if o.Bucket != 30*time.Second {
		t.Errorf("bucket = %v, want 30s", o.Bucket)
	}
	if o.SyncTag != "background-stats-sync" || o.SyncEndpoint != "/api/stats" {
		t.Errorf("sync = %q %q", o.SyncTag, o.SyncEndpoint)
	}
	if len(o.StaticAssets) != len(DefaultStaticAssets) {
		t.Errorf("static assets = %v", o.StaticAssets)
	}
	if o.Storage.Backend != "memory" {
		t.Errorf("backend = %q, want memory", o.Storage.Backend)
	}
	if cfg.Media.Limit != 20 {
		t.Errorf("media limit = %d, want 20", cfg.Media.Limit)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown backend", "offline:\n  storage:\n    backend: etcd\n", "unknown backend"},
		{"redis needs addr", "offline:\n  storage:\n    backend: redis\n", "redis_addr"},
		{"relative asset", "offline:\n  static_assets: [css/styles.css]\n", "absolute path"},
		{"zero bucket", "offline:\n  bucket: 0s\n", "bucket"},
		{"bad upstream", "origin:\n  upstream_url: not-a-url\n", "upstream_url"},
		{"duplicate service", "health:\n  services:\n    - {id: a, url: http://a}\n    - {id: a, url: http://b}\n", "duplicate id"},
		{"service without url", "health:\n  services:\n    - {id: a}\n", "id and url"},
		{"unexpanded admin key", "server:\n  admin_keys: [\"${FRONTPAGE_TEST_NEVER_SET}\"]\n", "unset environment variable"},
		{"short admin key", "server:\n  admin_keys: [abc]\n", "at least 16"},
		{"negative control rpm", "server:\n  control_rpm: -1\n", "control_rpm"},
		{"valid admin key", "server:\n  admin_keys: [fp-admin-0123456789abcdef]\n", ""},
		{"valid", "offline:\n  version: v3\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
