// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for streetlight.
package metrics

import (
	"time"

	"github.com/absmach/streetlight/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for streetlight. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Connection metrics
	ActiveConnections  prometheus.Gauge
	TotalConnections   *prometheus.CounterVec
	ConnectionDuration prometheus.Histogram

	// Message metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     prometheus.Histogram
	ResponseSize    prometheus.Histogram
	ParseErrors     *prometheus.CounterVec
	FramesWritten   prometheus.Counter

	// Backend metrics
	BackendRequestsTotal *prometheus.CounterVec
	BackendDuration      *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitedRequests *prometheus.CounterVec

	// Resource metrics
	GoroutinesActive prometheus.Gauge
	MemoryAllocated  *prometheus.GaugeVec
}

var sizeBuckets = []float64{0, 100, 1000, 10000, 100000, 1000000, 10000000}

// New creates a new Metrics instance registered with reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "streetlight"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently active connections",
			},
		),
		TotalConnections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of connections",
			},
			[]string{"status"},
		),
		ConnectionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connection_duration_seconds",
				Help:      "Connection duration in seconds",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests served",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RequestSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_body_size_bytes",
				Help:      "Declared request body size in bytes",
				Buckets:   sizeBuckets,
			},
		),
		ResponseSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_size_bytes",
				Help:      "Bytes written per response, head included",
				Buckets:   sizeBuckets,
			},
		),
		ParseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_errors_total",
				Help:      "Total number of messages that failed to parse",
			},
			[]string{"kind"},
		),
		FramesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_written_total",
				Help:      "Total number of stream frames written",
			},
		),
		BackendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Total number of backend requests",
			},
			[]string{"backend", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"backend"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"backend"},
		),
		RateLimitedRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_connections_total",
				Help:      "Total number of rate limited connections",
			},
			[]string{"limiter_type"},
		),
		GoroutinesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines_active",
				Help:      "Number of active goroutines",
			},
		),
		MemoryAllocated: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_allocated_bytes",
				Help:      "Memory allocated in bytes",
			},
			[]string{"type"},
		),
	}
}

// ConnectionOpened counts an admission decision and marks the connection
// active. err is the result of the wrapped AuthConnect.
func (m *Metrics) ConnectionOpened(err error) {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
	status := "accepted"
	if err != nil {
		status = "rejected"
	}
	m.TotalConnections.WithLabelValues(status).Inc()
}

// ConnectionClosed records how long a connection opened at start lived.
func (m *Metrics) ConnectionClosed(start time.Time) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	m.ConnectionDuration.Observe(time.Since(start).Seconds())
}

// ObserveRequest tracks a request lifecycle. f returns the status label.
func (m *Metrics) ObserveRequest(method string, f func() (string, error)) error {
	if m == nil {
		_, err := f()
		return err
	}
	start := time.Now()

	status, err := f()
	duration := time.Since(start).Seconds()

	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration)

	return err
}

// ObserveSizes records request and response body sizes in bytes.
func (m *Metrics) ObserveSizes(request, response int64) {
	if m == nil {
		return
	}
	if request >= 0 {
		m.RequestSize.Observe(float64(request))
	}
	m.ResponseSize.Observe(float64(response))
}

// ParseError counts a failed read by its error kind. Clean closes are not
// counted.
func (m *Metrics) ParseError(err error) {
	if m == nil || err == nil || errors.Is(err, errors.ErrConnectionClosed) {
		return
	}
	m.ParseErrors.WithLabelValues(errors.Kind(err)).Inc()
}

// FrameWritten counts one stream frame.
func (m *Metrics) FrameWritten() {
	if m == nil {
		return
	}
	m.FramesWritten.Inc()
}
