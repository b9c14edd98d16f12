package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

const metricsNamespace = "enrollment"

// tallies mirror a subset of the Prometheus series so the summary endpoint
// can answer without scraping the registry.
type tallies struct {
	requests        atomic.Uint64
	requestNanos    atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	enrollCommitted atomic.Uint64
	enrollRejected  atomic.Uint64
	dropCommitted   atomic.Uint64
	notifyDelivered atomic.Uint64
	notifyFailed    atomic.Uint64
}

// MetricsService owns the Prometheus registry for the API and keeps running
// totals for the JSON summary.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpLatency   *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	cacheOps      *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	cacheRatio    prometheus.Gauge
	decisions     *prometheus.CounterVec
	decisionTime  *prometheus.HistogramVec
	notifications *prometheus.CounterVec

	totals tallies
}

// NewMetricsService builds a private registry with the API collectors plus the
// Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template and status.",
		}, []string{"method", "path", "status"}),
		cacheOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_operation_seconds",
			Help:      "Catalog cache round trips by operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
		cacheRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hit_ratio",
			Help:      "Share of catalog cache lookups served from cache.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decisions_total",
			Help:      "Enroll and drop decisions by outcome.",
		}, []string{"operation", "status", "reason"}),
		decisionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "decision_duration_seconds",
			Help:      "Time spent validating and committing enroll and drop decisions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notification_deliveries_total",
			Help:      "Listener deliveries by category, event kind and outcome.",
		}, []string{"category", "kind", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpLatency, m.httpRequests,
		m.cacheOps, m.cacheLookups, m.cacheRatio,
		m.decisions, m.decisionTime,
		m.notifications,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpLatency.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.totals.requests.Add(1)
	m.totals.requestNanos.Add(uint64(duration))
}

// RecordCacheOperation records a cache read and refreshes the hit ratio gauge.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("get").Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.totals.cacheHits.Add(1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		m.totals.cacheMisses.Add(1)
	}
	m.cacheRatio.Set(ratio(m.totals.cacheHits.Load(), m.totals.cacheMisses.Load()))
}

func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveEnrollmentDecision records the outcome of an enroll or drop request.
func (m *MetricsService) ObserveEnrollmentDecision(operation string, result models.EnrollmentResult, duration time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(operation, result.Status, string(result.Reason)).Inc()
	m.decisionTime.WithLabelValues(operation).Observe(duration.Seconds())
	switch {
	case !result.OK():
		m.totals.enrollRejected.Add(1)
	case operation == operationDrop:
		m.totals.dropCommitted.Add(1)
	default:
		m.totals.enrollCommitted.Add(1)
	}
}

func (m *MetricsService) ObserveNotification(category string, kind models.EventKind, delivered bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if delivered {
		outcome = "delivered"
		m.totals.notifyDelivered.Add(1)
	} else {
		m.totals.notifyFailed.Add(1)
	}
	m.notifications.WithLabelValues(category, string(kind), outcome).Inc()
}

// Snapshot returns the running totals for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	t := &m.totals
	hits, misses := t.cacheHits.Load(), t.cacheMisses.Load()
	requests := t.requests.Load()

	var avgMs float64
	if requests > 0 {
		avgMs = float64(t.requestNanos.Load()) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            ratio(hits, misses),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgMs,
		EnrollmentsCommitted:     t.enrollCommitted.Load(),
		EnrollmentsRejected:      t.enrollRejected.Load(),
		DropsCommitted:           t.dropCommitted.Load(),
		NotificationsDelivered:   t.notifyDelivered.Load(),
		NotificationsFailed:      t.notifyFailed.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
