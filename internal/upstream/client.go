package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/circuitbreaker"
)

// Client fetches from a remote origin at a fixed base URL. Every attempt is
// accounted against the origin host's circuit breaker; while it is open the
// fetch fails immediately with frontpage.ErrCircuitOpen.
type Client struct {
	base     *url.URL
	http     *http.Client
	breakers *circuitbreaker.Registry // nil = no breaker
	onError  func(host string)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBreakers enables per-host circuit breaking.
func WithBreakers(r *circuitbreaker.Registry) ClientOption {
	return func(c *Client) { c.breakers = r }
}

// WithErrorHook registers a callback invoked for every failed attempt.
func WithErrorHook(fn func(host string)) ClientOption {
	return func(c *Client) { c.onError = fn }
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL string, hc *http.Client, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream url %q: %w", baseURL, frontpage.ErrBadRequest)
	}
	if hc == nil {
		hc = NewHTTPClient(nil)
	}
	c := &Client{base: u, http: hc}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Fetch forwards req to the origin, keeping its path and query. Non-2xx
// responses are returned as-is; only transport failures are errors.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := c.base.Host
	var br *circuitbreaker.Breaker
	if c.breakers != nil {
		br = c.breakers.GetOrCreate(host)
		if !br.Allow() {
			return nil, fmt.Errorf("fetch %s: %w", req.URL.Path, frontpage.ErrCircuitOpen)
		}
	}

	target := *c.base
	target.Path = c.base.Path + req.URL.Path
	target.RawPath = ""
	target.RawQuery = req.URL.RawQuery

	out, err := http.NewRequestWithContext(ctx, req.Method, target.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: create request: %w", err)
	}
	copyHeaders(out.Header, req.Header)

	resp, err := c.http.Do(out)
	if err != nil {
		c.record(br, host, err)
		return nil, fmt.Errorf("fetch %s: %w", target.Path, err)
	}
	if resp.StatusCode >= 500 {
		c.record(br, host, &StatusError{Code: resp.StatusCode, URL: target.Path})
	} else if br != nil {
		br.RecordSuccess()
	}
	return resp, nil
}

func (c *Client) record(br *circuitbreaker.Breaker, host string, err error) {
	if br != nil {
		br.RecordError(circuitbreaker.ClassifyError(err))
	}
	if c.onError != nil {
		c.onError(host)
	}
}
