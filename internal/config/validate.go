package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// minAdminKeyLength matches auth.MinKeyLength.
const minAdminKeyLength = 16

// Validate checks the configuration for values the server cannot start with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ControlRPM < 0 {
		errs = append(errs, errors.New("server.control_rpm must not be negative"))
	}
	for i, k := range c.Server.AdminKeys {
		switch {
		case envPattern.MatchString(k):
			errs = append(errs, fmt.Errorf("server.admin_keys[%d]: unset environment variable %s", i, k))
		case len(k) < minAdminKeyLength:
			errs = append(errs, fmt.Errorf("server.admin_keys[%d]: must be at least %d characters", i, minAdminKeyLength))
		}
	}

	o := c.Offline
	if o.Prefix == "" {
		errs = append(errs, errors.New("offline.prefix must not be empty"))
	}
	if o.Version == "" {
		errs = append(errs, errors.New("offline.version must not be empty"))
	}
	if o.APITimeout <= 0 {
		errs = append(errs, errors.New("offline.api_timeout must be positive"))
	}
	if o.Bucket <= 0 {
		errs = append(errs, errors.New("offline.bucket must be positive"))
	}
	if o.SyncInterval < 0 || o.Retention < 0 {
		errs = append(errs, errors.New("offline.sync_interval and offline.retention must not be negative"))
	}
	for _, a := range o.StaticAssets {
		if !strings.HasPrefix(a, "/") {
			errs = append(errs, fmt.Errorf("offline.static_assets: %q must be an absolute path", a))
		}
	}
	switch o.Storage.Backend {
	case "memory", "sqlite":
	case "redis":
		if o.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("offline.storage.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("offline.storage.backend: unknown backend %q", o.Storage.Backend))
	}

	if u := c.Origin.UpstreamURL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("origin.upstream_url: %q is not an absolute URL", u))
		}
	}

	seen := make(map[string]struct{}, len(c.Health.Services))
	for _, s := range c.Health.Services {
		if s.ID == "" || s.URL == "" {
			errs = append(errs, errors.New("health.services: id and url are required"))
			continue
		}
		if _, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf("health.services: duplicate id %q", s.ID))
		}
		seen[s.ID] = struct{}{}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
