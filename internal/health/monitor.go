// Package health polls the self-hosted services linked from the dashboard
// and keeps the last known state of each.
package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	frontpage "github.com/eugener/frontpage/internal"
	"github.com/eugener/frontpage/internal/telemetry"
)

// Service is a monitored endpoint.
type Service struct {
	ID             string
	Name           string
	URL            string
	HealthEndpoint string
	Timeout        time.Duration
	ExpectedStatus []int
	Headers        map[string]string
}

const (
	defaultTimeout  = 5 * time.Second
	defaultInterval = 30 * time.Second
	maxParallel     = 8
)

// Monitor checks services and holds the latest results.
type Monitor struct {
	services []Service
	client   *http.Client
	interval time.Duration
	metrics  *telemetry.Metrics // nil = no metrics
	now      func() time.Time

	mu     sync.RWMutex
	status map[string]frontpage.ServiceHealth
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval of Run.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMetrics publishes each result on the service_up gauge.
func WithMetrics(mt *telemetry.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithClock overrides time.Now for LastChecked stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor returns a Monitor for services using client. Redirects are
// followed, as the status that counts is the final one.
func NewMonitor(services []Service, client *http.Client, opts ...Option) *Monitor {
	if client == nil {
		client = &http.Client{}
	}
	m := &Monitor{
		services: services,
		client:   client,
		interval: defaultInterval,
		now:      time.Now,
		status:   make(map[string]frontpage.ServiceHealth, len(services)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Name returns the worker identifier.
func (m *Monitor) Name() string { return "health_monitor" }

// Run checks all services immediately, then every interval until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.CheckAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckAll(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// CheckAll checks every service in parallel and replaces the stored results
// as one snapshot.
func (m *Monitor) CheckAll(ctx context.Context) map[string]frontpage.ServiceHealth {
	results := make([]frontpage.ServiceHealth, len(m.services))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, svc := range m.services {
		g.Go(func() error {
			results[i] = m.Check(ctx, svc)
			return nil
		})
	}
	g.Wait()

	next := make(map[string]frontpage.ServiceHealth, len(m.services))
	for i, svc := range m.services {
		next[svc.ID] = results[i]
		m.publish(svc.ID, results[i].Status)
	}

	m.mu.Lock()
	m.status = next
	m.mu.Unlock()

	slog.LogAttrs(ctx, slog.LevelDebug, "health check completed",
		slog.Int("services", len(next)),
	)
	return maps.Clone(next)
}

// Check performs one request against svc.
func (m *Monitor) Check(ctx context.Context, svc Service) frontpage.ServiceHealth {
	h := frontpage.ServiceHealth{Name: svc.Name}

	timeout := svc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL+svc.HealthEndpoint, nil)
	if err != nil {
		return m.offline(h, err.Error())
	}
	for k, v := range svc.Headers {
		req.Header.Set(k, v)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return m.offline(h, describe(err))
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	rt := time.Since(start).Milliseconds()
	code := resp.StatusCode
	h.ResponseTime = &rt
	h.StatusCode = &code
	h.LastChecked = m.now()
	h.Status = frontpage.HealthDegraded
	if expected(svc.ExpectedStatus, code) {
		h.Status = frontpage.HealthOnline
	}
	return h
}

func (m *Monitor) offline(h frontpage.ServiceHealth, msg string) frontpage.ServiceHealth {
	h.Status = frontpage.HealthOffline
	h.LastChecked = m.now()
	h.Error = &msg
	return h
}

func expected(codes []int, code int) bool {
	if len(codes) == 0 {
		return code == http.StatusOK
	}
	return slices.Contains(codes, code)
}

// describe turns a transport error into the message shown on the dashboard.
func describe(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "Connection timeout"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return "Connection refused"
	}
	return err.Error()
}

func (m *Monitor) publish(id string, s frontpage.HealthState) {
	if m.metrics == nil {
		return
	}
	v := 0.0
	switch s {
	case frontpage.HealthOnline:
		v = 1
	case frontpage.HealthDegraded:
		v = 0.5
	}
	m.metrics.ServiceUp.WithLabelValues(id).Set(v)
}

// All returns a copy of the latest results keyed by service id.
func (m *Monitor) All() map[string]frontpage.ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.status)
}

// Get returns the latest result for id.
func (m *Monitor) Get(id string) (frontpage.ServiceHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.status[id]
	return h, ok
}

// Counts tallies the latest results by state.
func (m *Monitor) Counts() (online, degraded, offline int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.status {
		switch h.Status {
		case frontpage.HealthOnline:
			online++
		case frontpage.HealthDegraded:
			degraded++
		default:
			offline++
		}
	}
	return online, degraded, offline
}
