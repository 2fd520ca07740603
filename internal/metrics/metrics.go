// Package metrics exposes Prometheus collectors for the chat service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn paths.
const (
	PathFlow       = "flow"
	PathClassified = "classified"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	escapes         prometheus.Counter
	generatorErrors prometheus.Counter
	archiveFailures prometheus.Counter
	rateLimited     prometheus.Counter
	sessionsExpired prometheus.Counter
	wsConnections   prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veltrix_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veltrix_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veltrix_chat_turns_total",
			Help: "Chat turns by path and intent",
		}, []string{"path", "intent"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veltrix_chat_turn_duration_seconds",
			Help:    "Chat turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		escapes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veltrix_guided_flow_escapes_total",
			Help: "Guided flows abandoned for a new query",
		}),
		generatorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veltrix_generator_errors_total",
			Help: "Failed fallback generator calls",
		}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veltrix_transcript_archive_failures_total",
			Help: "Transcript appends that failed and were dropped",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veltrix_rate_limited_total",
			Help: "Chat requests rejected by the per-user rate limiter",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veltrix_sessions_expired_total",
			Help: "Idle sessions removed by the sweeper",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "veltrix_ws_connections",
			Help: "Open chat WebSocket connections",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.turns, m.turnDuration,
		m.escapes, m.generatorErrors, m.archiveFailures,
		m.rateLimited, m.sessionsExpired, m.wsConnections,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTurn records one chat turn. intent is empty on the flow path.
func (m *Metrics) ObserveTurn(path, intent string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(path, intent).Inc()
	m.turnDuration.WithLabelValues(path).Observe(d.Seconds())
}

// Escape counts an abandoned guided flow.
func (m *Metrics) Escape() {
	if m != nil {
		m.escapes.Inc()
	}
}

// GeneratorError counts a failed fallback call.
func (m *Metrics) GeneratorError() {
	if m != nil {
		m.generatorErrors.Inc()
	}
}

// ArchiveFailure counts a dropped transcript append.
func (m *Metrics) ArchiveFailure() {
	if m != nil {
		m.archiveFailures.Inc()
	}
}

// RateLimited counts a throttled request.
func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

// SessionsExpired counts sweeper evictions.
func (m *Metrics) SessionsExpired(n int) {
	if m != nil {
		m.sessionsExpired.Add(float64(n))
	}
}

// ConnOpened and ConnClosed track open WebSocket connections.
func (m *Metrics) ConnOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

// ConnClosed decrements the open connection gauge.
func (m *Metrics) ConnClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}
