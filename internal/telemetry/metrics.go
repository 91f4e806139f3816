// Package telemetry provides observability primitives for the frontpage server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the server.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ActiveRequests    prometheus.Gauge
	OfflineResponses  *prometheus.CounterVec
	UpstreamErrors    *prometheus.CounterVec
	ContainersDeleted prometheus.Counter
	EntriesPurged     prometheus.Counter
	ServiceUp         *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontpage",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "frontpage",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frontpage",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		OfflineResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontpage",
			Name:      "offline_responses_total",
			Help:      "Responses produced by the offline cache layer, by strategy and source.",
		}, []string{"strategy", "source"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontpage",
			Name:      "upstream_errors_total",
			Help:      "Total failed network attempts, by upstream host.",
		}, []string{"host"}),

		ContainersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontpage",
			Name:      "cache_containers_deleted_total",
			Help:      "Stale cache containers deleted at activation.",
		}),

		EntriesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontpage",
			Name:      "cache_entries_purged_total",
			Help:      "Expired API cache entries removed by the retention worker.",
		}),

		ServiceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "frontpage",
			Name:      "service_up",
			Help:      "Monitored service state: 1 online, 0.5 degraded, 0 offline.",
		}, []string{"service"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.OfflineResponses,
		m.UpstreamErrors,
		m.ContainersDeleted,
		m.EntriesPurged,
		m.ServiceUp,
	)

	return m
}
