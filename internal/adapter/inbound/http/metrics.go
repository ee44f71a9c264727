// Package http provides the inbound HTTP transport for the gateway.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ActiveStreams     prometheus.Gauge
	StreamEventsTotal prometheus.Counter
	AuthFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "threadgate",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "threadgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveStreams: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "threadgate",
				Name:      "active_streams",
				Help:      "Number of open relay streams",
			},
		),
		StreamEventsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "threadgate",
				Name:      "stream_events_total",
				Help:      "Total upstream events forwarded to clients",
			},
		),
		AuthFailuresTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "threadgate",
				Name:      "auth_failures_total",
				Help:      "Total failed identity resolutions",
			},
			[]string{"reason"},
		),
	}
}
