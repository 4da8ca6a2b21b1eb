// File: control/metrics_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	// None of these may panic on a nil receiver.
	m.SessionOpened()
	m.SessionClosed(1000)
	m.HandshakeRejected(404)
	m.FrameReceived()
	m.FrameSent()
	m.MessageDispatched()
	m.HandlerPanic()
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(1000)
	m.HandshakeRejected(404)
	m.HandshakeRejected(404)
	m.HandshakeRejected(426)
	m.FrameReceived()
	m.FrameSent()
	m.MessageDispatched()
	m.HandlerPanic()

	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Errorf("active_sessions = %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsTotal); got != 2 {
		t.Errorf("sessions_total = %v", got)
	}
	if got := testutil.ToFloat64(m.handshakeRejections.WithLabelValues("404")); got != 2 {
		t.Errorf("handshake_rejections_total{404} = %v", got)
	}
	if got := testutil.ToFloat64(m.closesByCode.WithLabelValues("1000")); got != 1 {
		t.Errorf("session_closes_total{1000} = %v", got)
	}
	if got := testutil.ToFloat64(m.handlerPanics); got != 1 {
		t.Errorf("handler_panics_total = %v", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	// Two collectors must coexist as long as they use distinct
	// registries; panics here would mean accidental global state.
	a := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	b := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	a.SessionOpened()
	b.SessionOpened()
}
