// Package metrics provides Prometheus metrics collection for schemagate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "schemagate"

// Collector holds all Prometheus metrics for schemagate. It implements
// ports.DerivationObserver and ports.RenderObserver.
type Collector struct {
	// Derivation metrics
	SchemasDerived     *prometheus.CounterVec
	DerivationDuration *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	UnsupportedTypes   *prometheus.CounterVec
	MapFallbacks       *prometheus.CounterVec

	// Document metrics
	DocumentsRendered *prometheus.CounterVec
	RenderDuration    *prometheus.HistogramVec

	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		SchemasDerived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schemas_derived_total",
				Help:      "Total number of schemas registered by derivation",
			},
			[]string{"api", "shape"},
		),
		DerivationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "derivation_duration_seconds",
				Help:      "Time spent deriving a single schema",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"api"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Top-level derivation requests by cache result",
			},
			[]string{"api", "result"},
		),
		UnsupportedTypes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unsupported_types_total",
				Help:      "Total number of rejected derivations",
			},
			[]string{"api"},
		),
		MapFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "map_fallbacks_total",
				Help:      "Maps described with the opaque map schema",
			},
			[]string{"api", "reason"},
		),
		DocumentsRendered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_rendered_total",
				Help:      "Total number of rendered schema documents",
			},
			[]string{"api", "format", "status"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Document render duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"format"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// SchemaDerived implements ports.DerivationObserver.
func (c *Collector) SchemaDerived(api, shape string, d time.Duration) {
	c.SchemasDerived.WithLabelValues(api, shape).Inc()
	c.DerivationDuration.WithLabelValues(api).Observe(d.Seconds())
}

// CacheLookup implements ports.DerivationObserver.
func (c *Collector) CacheLookup(api string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(api, result).Inc()
}

// UnsupportedType implements ports.DerivationObserver.
func (c *Collector) UnsupportedType(api string) {
	c.UnsupportedTypes.WithLabelValues(api).Inc()
}

// MapFallback implements ports.DerivationObserver.
func (c *Collector) MapFallback(api, reason string) {
	c.MapFallbacks.WithLabelValues(api, reason).Inc()
}

// DocumentRendered implements ports.RenderObserver.
func (c *Collector) DocumentRendered(api, format string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.DocumentsRendered.WithLabelValues(api, format, status).Inc()
	c.RenderDuration.WithLabelValues(format).Observe(d.Seconds())
}

// RequestServed records one HTTP request. route is the matched route
// pattern, not the raw path.
func (c *Collector) RequestServed(method, route, status string, d time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, status).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ConfigReloaded records the outcome of a config reload.
func (c *Collector) ConfigReloaded(at time.Time, err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}
