// package metrics exposes Prometheus instrumentation for streaming sessions
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the pulse server.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	ActiveSessions  *prometheus.GaugeVec
	SessionsOpened  *prometheus.CounterVec
	SessionsClosed  *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec

	// Emission metrics
	ValuesSent   *prometheus.CounterVec
	SendFailures *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimited         *prometheus.CounterVec
}

// NewMetrics creates all metrics on a fresh registry that also carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ActiveSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_active_sessions",
			Help: "Current number of streaming sessions",
		}, []string{"transport"}),
		SessionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_sessions_opened_total",
			Help: "Total number of sessions opened",
		}, []string{"transport"}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_sessions_closed_total",
			Help: "Total number of sessions torn down, by outcome",
		}, []string{"transport", "outcome"}),
		SessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_session_duration_seconds",
			Help:    "Lifetime of streaming sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}, []string{"transport"}),

		ValuesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_values_sent_total",
			Help: "Total number of progress values pushed to clients",
		}, []string{"transport"}),
		SendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_send_failures_total",
			Help: "Total number of progress values that could not be pushed",
		}, []string{"transport"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "Duration of HTTP requests, including time spent streaming",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_rate_limited_total",
			Help: "Total number of session requests rejected by the admission limiter",
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SessionOpened increments the opened counter and the active gauge
func (m *Metrics) SessionOpened(transport string) {
	if m == nil {
		return
	}
	m.SessionsOpened.WithLabelValues(transport).Inc()
	m.ActiveSessions.WithLabelValues(transport).Inc()
}

// SessionClosed decrements the active gauge and records the outcome and lifetime
func (m *Metrics) SessionClosed(transport, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(transport).Dec()
	m.SessionsClosed.WithLabelValues(transport, outcome).Inc()
	m.SessionDuration.WithLabelValues(transport).Observe(d.Seconds())
}

func (m *Metrics) ValueSent(transport string) {
	if m == nil {
		return
	}
	m.ValuesSent.WithLabelValues(transport).Inc()
}

func (m *Metrics) SendFailed(transport string) {
	if m == nil {
		return
	}
	m.SendFailures.WithLabelValues(transport).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRateLimited records a rejected admission
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}
