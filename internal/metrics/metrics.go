package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	// Event metrics
	EventsRecorded *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	CounterErrors  prometheus.Counter

	// Store metrics
	StoreLatency *prometheus.HistogramVec
	StoreErrors  *prometheus.CounterVec

	// Reporting metrics
	ReportRequests  *prometheus.CounterVec
	ReportFallbacks *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// System metrics
	DBConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Enrichment metrics
	GeoLookupLatency  *prometheus.HistogramVec
	GeoLookupFailures prometheus.Counter
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the Prometheus default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		// Event metrics
		EventsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_recorded_total",
				Help:      "Analytics events written to the event store",
			},
			[]string{"event_type"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Analytics events lost because the store insert failed",
			},
			[]string{"event_type"},
		),
		CounterErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "daily_counter_errors_total",
				Help:      "Failed daily counter increments",
			},
		),

		// Store metrics
		StoreLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Event store call latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Failed event store calls",
			},
			[]string{"operation"},
		),

		// Reporting metrics
		ReportRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_requests_total",
				Help:      "Reports computed",
			},
			[]string{"report"},
		),
		ReportFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_fallbacks_total",
				Help:      "Reports answered with the zero state after a fetch failure",
			},
			[]string{"report"},
		),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// System metrics
		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"tier"},
		),

		// Enrichment metrics
		GeoLookupLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"cache_hit"},
		),
		GeoLookupFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geo_lookup_failures_total",
				Help:      "GeoIP lookups that returned no location",
			},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a metrics handler serving the given registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordEvent records a stored event.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsRecorded.WithLabelValues(eventType).Inc()
}

// RecordDroppedEvent records an event lost to a store failure.
func (m *Metrics) RecordDroppedEvent(eventType string) {
	m.EventsDropped.WithLabelValues(eventType).Inc()
}

// RecordCounterError records a failed daily counter increment.
func (m *Metrics) RecordCounterError() {
	m.CounterErrors.Inc()
}

// RecordStoreCall records the latency and outcome of one store call.
func (m *Metrics) RecordStoreCall(operation string, latency time.Duration, err error) {
	m.StoreLatency.WithLabelValues(operation).Observe(latency.Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordReport records a computed report and whether it fell back to
// the zero state.
func (m *Metrics) RecordReport(report string, fallback bool) {
	m.ReportRequests.WithLabelValues(report).Inc()
	if fallback {
		m.ReportFallbacks.WithLabelValues(report).Inc()
	}
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(cacheHit bool, latency time.Duration) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	m.GeoLookupLatency.WithLabelValues(hit).Observe(latency.Seconds())
}

// RecordGeoLookupFailure records a lookup that resolved nothing. Its
// latency lands in the cache miss series.
func (m *Metrics) RecordGeoLookupFailure(latency time.Duration) {
	m.GeoLookupLatency.WithLabelValues("false").Observe(latency.Seconds())
	m.GeoLookupFailures.Inc()
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(tier string) {
	m.RateLimitHits.WithLabelValues(tier).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
