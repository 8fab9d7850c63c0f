package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the HTTP surface.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	searchesTotal   *prometheus.CounterVec
	rebuildsTotal   prometheus.Counter
	indexedRecords  prometheus.Gauge
}

// NewMetrics creates a metrics set on its own registry, so tests can build
// servers without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperdex_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paperdex_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperdex_searches_total",
			Help: "Search requests by outcome.",
		}, []string{"outcome"}),
		rebuildsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperdex_index_rebuilds_total",
			Help: "Completed index rebuild passes.",
		}),
		indexedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paperdex_indexed_records",
			Help: "Record entries currently in the index.",
		}),
	}
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
