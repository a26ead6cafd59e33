package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout outcomes recorded on checkout_attempts_total.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid"
	OutcomeNotFound       = "not_found"
	OutcomeConflict       = "conflict"
	OutcomeFull           = "full"
	OutcomeUpstreamFailed = "upstream_failed"
	OutcomeError          = "error"
	OutcomeIgnored        = "ignored"
)

// MetricsService encapsulates Prometheus instrumentation. Every method is safe
// on a nil receiver so callers can run without metrics.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	checkoutAttempts *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	holdsReleased    *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	checkoutAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by outcome",
	}, []string{"outcome"})

	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_events_total",
		Help: "Payment notifications processed by type and outcome",
	}, []string{"type", "outcome"})

	holdsReleased := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holds_released_total",
		Help: "Seat holds deleted by reason",
	}, []string{"reason"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Transactional emails by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, checkoutAttempts, settlements, holdsReleased, notifications, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLookups:     cacheLookups,
		cacheLatency:     cacheLatency,
		checkoutAttempts: checkoutAttempts,
		settlements:      settlements,
		holdsReleased:    holdsReleased,
		notifications:    notifications,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheLookup records a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.Observe(duration.Seconds())
}

// RecordCheckout counts a checkout attempt.
func (m *MetricsService) RecordCheckout(outcome string) {
	if m == nil {
		return
	}
	m.checkoutAttempts.WithLabelValues(outcome).Inc()
}

// RecordSettlement counts a processed payment notification.
func (m *MetricsService) RecordSettlement(eventType, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(eventType, outcome).Inc()
}

// RecordHoldsReleased counts deleted holds.
func (m *MetricsService) RecordHoldsReleased(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsReleased.WithLabelValues(reason).Add(float64(n))
}

// RecordNotification counts an email delivery attempt outcome.
func (m *MetricsService) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
