// Package offline implements the offline cache layer that sits in front of
// the dashboard origin. Requests are classified by path and served
// network-first (API), cache-first (static assets and images) or passed
// through, so the dashboard keeps working when its backends are unreachable.
package offline

import (
	"strings"
	"time"
)

// Config controls container naming and request classification.
type Config struct {
	Prefix        string
	Version       string
	StaticAssets  []string
	APIMarker     string
	ImagesSegment string
	APITimeout    time.Duration
	Bucket        time.Duration
	SyncTag       string
	SyncEndpoint  string
	OriginHost    string // "" = every relative request is same-origin
}

// DefaultConfig returns the stock dashboard settings.
func DefaultConfig() Config {
	return Config{
		Prefix:  "media-frontpage-",
		Version: "v1.2",
		StaticAssets: []string{
			"/",
			"/index.html",
			"/css/styles.css",
			"/js/main.js",
			"/js/monitor.js",
			"/js/config.js",
			"/images/guyfox.png",
		},
		APIMarker:     "/api/",
		ImagesSegment: "/images/",
		APITimeout:    8 * time.Second,
		Bucket:        30 * time.Second,
		SyncTag:       "background-stats-sync",
		SyncEndpoint:  "/api/stats",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.StaticAssets == nil {
		c.StaticAssets = d.StaticAssets
	}
	if c.APIMarker == "" {
		c.APIMarker = d.APIMarker
	}
	if c.ImagesSegment == "" {
		c.ImagesSegment = d.ImagesSegment
	}
	if c.APITimeout <= 0 {
		c.APITimeout = d.APITimeout
	}
	if c.Bucket <= 0 {
		c.Bucket = d.Bucket
	}
	if c.SyncTag == "" {
		c.SyncTag = d.SyncTag
	}
	if c.SyncEndpoint == "" {
		c.SyncEndpoint = d.SyncEndpoint
	}
	return c
}

// Names are the three container names owned by one version.
type Names struct {
	Base   string `json:"base"`
	Static string `json:"static"`
	API    string `json:"api"`
}

// Names derives the container names for c.Version.
func (c Config) Names() Names {
	return Names{
		Base:   c.Prefix + c.Version,
		Static: c.Prefix + "static-" + c.Version,
		API:    c.Prefix + "api-" + c.Version,
	}
}

// owns reports whether name is one of n.
func (n Names) owns(name string) bool {
	return name == n.Base || name == n.Static || name == n.API
}

// RouteKind is the strategy class of a request path.
type RouteKind int

const (
	RouteOther RouteKind = iota
	RouteAPI
	RouteStatic
	RouteImage
)

func (k RouteKind) String() string {
	switch k {
	case RouteAPI:
		return "api"
	case RouteStatic:
		return "static"
	case RouteImage:
		return "image"
	default:
		return "other"
	}
}

// Classify maps a URL path to its route kind. API wins over static, and
// static wins over image, so /images/guyfox.png is a manifest asset.
func (c Config) Classify(path string) RouteKind {
	if c.APIMarker != "" && strings.Contains(path, c.APIMarker) {
		return RouteAPI
	}
	for _, asset := range c.StaticAssets {
		if path == asset {
			return RouteStatic
		}
		// "/" would match every directory path.
		if asset != "/" && strings.HasSuffix(path, asset) {
			return RouteStatic
		}
	}
	if c.ImagesSegment != "" && strings.Contains(path, c.ImagesSegment) {
		return RouteImage
	}
	return RouteOther
}

// isShell reports whether path is the dashboard page shell.
func isShell(path string) bool {
	return path == "/" || path == "/index.html"
}
