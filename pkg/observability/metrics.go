package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Registry metrics
	PluginTransitionsTotal *prometheus.CounterVec
	PackageDownloadsTotal  prometheus.Counter
	PublicCacheEventsTotal *prometheus.CounterVec

	// Identity metrics
	LoginsTotal *prometheus.CounterVec

	// Optional OTel mirror of the domain counters
	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Registry metrics
		PluginTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_plugin_transitions_total",
				Help: "Publication transitions attempted, by action and result",
			},
			[]string{"action", "result"},
		),
		PackageDownloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_package_downloads_total",
				Help: "Total number of package downloads served",
			},
		),
		PublicCacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_public_cache_events_total",
				Help: "Public metadata cache hits, misses and invalidations",
			},
			[]string{"event"},
		),

		// Identity metrics
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.PluginTransitionsTotal,
		m.PackageDownloadsTotal,
		m.PublicCacheEventsTotal,
		m.LoginsTotal,
	)

	return m
}

// AttachOTel mirrors domain counters to OpenTelemetry instruments
func (m *Metrics) AttachOTel(o *OTelMetrics) {
	m.otel = o
}

// RegisterDBStats exports connection pool statistics for db
func (m *Metrics) RegisterDBStats(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// TransitionObserved records a publication transition attempt
func (m *Metrics) TransitionObserved(action string, err error) {
	result := resultLabel(err)
	m.PluginTransitionsTotal.WithLabelValues(action, result).Inc()
	m.otel.recordTransition(action, result)
}

// PackageDownloaded records a served package
func (m *Metrics) PackageDownloaded(pluginID string) {
	m.PackageDownloadsTotal.Inc()
	m.otel.recordDownload(pluginID)
}

// CacheEvent records a public cache event
func (m *Metrics) CacheEvent(event string) {
	m.PublicCacheEventsTotal.WithLabelValues(event).Inc()
}

// LoginAttempted records a login outcome
func (m *Metrics) LoginAttempted(result string) {
	m.LoginsTotal.WithLabelValues(result).Inc()
	m.otel.recordLogin(result)
}

// resultLabel maps an error to a bounded label value
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(apperrors.KindOf(err)))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the matched mux template so ids do not explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			path := routeLabel(r)
			duration := time.Since(start)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
			metrics.otel.recordHTTPRequest(r.Context(), r.Method, path, rw.statusCode, duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
