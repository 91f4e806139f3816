package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eugener/frontpage/internal/cache"
	"github.com/eugener/frontpage/internal/offline"
	"github.com/eugener/frontpage/internal/telemetry"
	"github.com/eugener/frontpage/internal/testutil"
)

func newMetricsHandler(reg *prometheus.Registry) http.Handler {
	metrics := telemetry.NewMetrics(reg)
	m := offline.New(offline.Config{}, offline.Deps{
		Storage: cache.NewStorage(100),
		Network: &testutil.FakeFetcher{FetchFn: testutil.Routes("text/plain", origin)},
		Metrics: metrics,
	})
	return New(Deps{
		Offline:        m,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := newMetricsHandler(reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d; body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d; body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "frontpage_requests_total") {
		t.Error("metrics should contain frontpage_requests_total")
	}
	if !strings.Contains(body, "frontpage_request_duration_seconds") {
		t.Error("metrics should contain frontpage_request_duration_seconds")
	}
}

func TestMetricsMiddleware_IncrementsCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := newMetricsHandler(reg)

	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}
	for _, p := range []string{"/api/stats?x=1", "/api/stats?x=2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	paths := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "frontpage_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" {
					paths[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	if paths["/healthz"] < 3 {
		t.Errorf("requests_total for /healthz = %f, want >= 3", paths["/healthz"])
	}
	if paths["offline:api"] != 2 {
		t.Errorf("offline requests labelled %v, want offline:api = 2", paths)
	}
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		want string
	}{
		{200, "200"},
		{599, "599"},
		{600, "600"},
		{799, "799"},
		{999, "999"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.code); got != tt.want {
			t.Errorf("statusLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestMetricsMiddleware_UnusualStatus(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	m := offline.New(offline.Config{}, offline.Deps{
		Storage: cache.NewStorage(100),
		Network: &testutil.FakeFetcher{FetchFn: func(context.Context, *http.Request) (*http.Response, error) {
			return testutil.Respond(799, "text/plain", "odd"), nil
		}},
	})
	h := New(Deps{Offline: m, Metrics: metrics})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/odd", nil))
	if rec.Code != 799 {
		t.Fatalf("code = %d, want 799", rec.Code)
	}
	if got := promtest.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodGet, "offline:other", "799")); got != 1 {
		t.Errorf("requests_total{status=799} = %v, want 1", got)
	}
}
