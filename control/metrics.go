// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus metrics for the endpoint container. All record methods are
// nil-receiver safe so instrumentation points never need guards.

package control

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures metric registration.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "endpointws").
	Namespace string

	// Registry is the Prometheus registerer (default:
	// prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// MetricsOption customizes MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(ns string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = ns }
}

// WithRegistry sets the Prometheus registerer.
func WithRegistry(r prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = r }
}

// Metrics aggregates container counters. A nil *Metrics is a valid
// no-op collector.
type Metrics struct {
	activeSessions      prometheus.Gauge
	sessionsTotal       prometheus.Counter
	handshakeRejections *prometheus.CounterVec
	framesReceived      prometheus.Counter
	framesSent          prometheus.Counter
	messagesDispatched  prometheus.Counter
	handlerPanics       prometheus.Counter
	closesByCode        *prometheus.CounterVec
}

// NewMetrics registers and returns the container metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "endpointws",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, o := range opts {
		o(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_sessions",
			Help:      "Number of currently open sessions.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "sessions_total",
			Help:      "Total sessions opened.",
		}),
		handshakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "handshake_rejections_total",
			Help:      "Handshake rejections by HTTP status.",
		}, []string{"status"}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_received_total",
			Help:      "Frames decoded from peers.",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to peers.",
		}),
		messagesDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "messages_dispatched_total",
			Help:      "Complete messages delivered to endpoint handlers.",
		}),
		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "handler_panics_total",
			Help:      "Panics recovered from endpoint callbacks.",
		}),
		closesByCode: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "session_closes_total",
			Help:      "Session closures by close code.",
		}, []string{"code"}),
	}
}

// SessionOpened records a new open session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

// SessionClosed records a session reaching its terminal state.
func (m *Metrics) SessionClosed(code int) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.closesByCode.WithLabelValues(strconv.Itoa(code)).Inc()
}

// HandshakeRejected records a rejected upgrade attempt.
func (m *Metrics) HandshakeRejected(status int) {
	if m == nil {
		return
	}
	m.handshakeRejections.WithLabelValues(strconv.Itoa(status)).Inc()
}

// FrameReceived records one decoded inbound frame.
func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

// FrameSent records one outbound frame.
func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

// MessageDispatched records one message handed to a handler callback.
func (m *Metrics) MessageDispatched() {
	if m == nil {
		return
	}
	m.messagesDispatched.Inc()
}

// HandlerPanic records a recovered callback panic.
func (m *Metrics) HandlerPanic() {
	if m == nil {
		return
	}
	m.handlerPanics.Inc()
}
