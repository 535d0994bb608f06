package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the
// booking and reconciliation pipelines.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	bookingsCreated *prometheus.CounterVec
	substitutions   prometheus.Counter
	restorations    prometheus.Counter
	rescheduleFlags prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	bookingsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total lesson bookings created, by assignment kind",
	}, []string{"kind"})

	substitutions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_substitutions_total",
		Help: "Bookings moved to a substitute tutor by reconciliation",
	})

	restorations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_restorations_total",
		Help: "Bookings handed back to their home tutor by reconciliation",
	})

	rescheduleFlags := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_needs_reschedule_total",
		Help: "Bookings flagged for manual reschedule because no substitute was free",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite,
		cacheHits, cacheMisses, bookingsCreated, substitutions, restorations, rescheduleFlags, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		bookingsCreated: bookingsCreated,
		substitutions:   substitutions,
		restorations:    restorations,
		rescheduleFlags: rescheduleFlags,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordBookingCreated counts a persisted booking. Kind is "home",
// "substitute" or "fresh".
func (m *MetricsService) RecordBookingCreated(kind string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(kind).Inc()
}

// RecordReconciliation counts the outcome of one reconciliation run.
func (m *MetricsService) RecordReconciliation(result models.ReconcileResult) {
	if m == nil {
		return
	}
	m.substitutions.Add(float64(result.Substitutions))
	m.restorations.Add(float64(result.Restorations))
	m.rescheduleFlags.Add(float64(result.NeedsReschedule))
}
