// Package observability provides metrics, tracing and logging setup.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of a view host. Each collector owns
// its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Reconciliation metrics
	Operations      *prometheus.CounterVec
	Batches         *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	ParseFailures   prometheus.Counter
	HighlightActive prometheus.Gauge

	// Bridge metrics
	BridgeRequests *prometheus.CounterVec
	BridgeDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Graph operations applied or rejected",
			},
			[]string{"kind", "status"},
		),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Operation batches by source",
			},
			[]string{"source", "silent"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Time spent applying one batch",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		ParseFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_failures_total",
				Help:      "Assistant replies that carried no interpretable payload",
			},
		),
		HighlightActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "highlight_active",
				Help:      "Number of currently highlighted nodes",
			},
		),
		BridgeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_requests_total",
				Help:      "Calls to the session and chat APIs",
			},
			[]string{"call", "status"},
		),
		BridgeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bridge_request_duration_seconds",
				Help:      "Session and chat API latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"call"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Operations,
		c.Batches,
		c.BatchDuration,
		c.ParseFailures,
		c.HighlightActive,
		c.BridgeRequests,
		c.BridgeDuration,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordOperation(kind, status string) {
	c.Operations.WithLabelValues(kind, status).Inc()
}

func (c *Collector) RecordBatch(source string, silent bool, d time.Duration) {
	c.Batches.WithLabelValues(source, strconv.FormatBool(silent)).Inc()
	c.BatchDuration.Observe(d.Seconds())
}

func (c *Collector) RecordParseFailure() {
	c.ParseFailures.Inc()
}

func (c *Collector) SetHighlightActive(n int) {
	c.HighlightActive.Set(float64(n))
}

// RecordBridgeCall counts one session or chat API call.
func (c *Collector) RecordBridgeCall(call, status string, d time.Duration) {
	c.BridgeRequests.WithLabelValues(call, status).Inc()
	c.BridgeDuration.WithLabelValues(call).Observe(d.Seconds())
}

// RecordHTTPRequest counts one request served by the view host.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
