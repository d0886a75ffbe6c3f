package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/keel/internal"
)

// UnmatchedRoute labels requests that matched no route.
const UnmatchedRoute = "unmatched"

// Metrics records request counts and latencies in Prometheus.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

type metricsConfig struct {
	registry  *prometheus.Registry
	namespace string
	buckets   []float64
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*metricsConfig)

// WithMetricsRegistry registers the collectors on r instead of a private
// registry.
func WithMetricsRegistry(r *prometheus.Registry) MetricsOption {
	return func(cfg *metricsConfig) {
		if r != nil {
			cfg.registry = r
		}
	}
}

// WithMetricsNamespace prefixes metric names.
func WithMetricsNamespace(ns string) MetricsOption {
	return func(cfg *metricsConfig) {
		cfg.namespace = ns
	}
}

// WithMetricsBuckets sets the latency histogram buckets in seconds.
func WithMetricsBuckets(buckets ...float64) MetricsOption {
	return func(cfg *metricsConfig) {
		if len(buckets) > 0 {
			cfg.buckets = buckets
		}
	}
}

// NewMetrics creates the HTTP collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := &metricsConfig{buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.registry)
	return &Metrics{
		registry: cfg.registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   cfg.buckets,
		}, []string{"route", "method", "status"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry for scraping. Attach it with Router.Mount
// so scrapes skip the middleware stack.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes every request. Register it globally; routes are
// labelled by name, falling back to the URI pattern so path parameters do
// not explode cardinality.
func (m *Metrics) Middleware() internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			start := time.Now()
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			err := next(c)

			status := c.ResponseWriter().Status()
			if status == 0 {
				status = http.StatusOK
			}
			if err != nil {
				status = internal.ToHTTPError(err).Code
			}
			labels := prometheus.Labels{
				"route":  routeLabel(c),
				"method": c.Request().Method,
				"status": strconv.Itoa(status),
			}
			m.requests.With(labels).Inc()
			m.duration.With(labels).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func routeLabel(c internal.Context) string {
	if name := c.RouteName(); name != "" {
		return name
	}
	if r := c.Route(); r != nil {
		return r.URI()
	}
	return UnmatchedRoute
}
