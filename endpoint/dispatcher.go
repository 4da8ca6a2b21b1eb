// File: endpoint/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The dispatcher binds one session to one handler instance and invokes
// its callbacks as events occur. Panics raised by a callback are caught
// per-invocation and redirected to the error callback; they never
// propagate into the frame codec or the transport loop.

package endpoint

import (
	"fmt"
	"log/slog"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/control"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/session"
)

// Dispatcher implements session.Sink for one bound handler instance.
type Dispatcher struct {
	reg     *Registration // nil for client-role sessions
	factory Factory
	handler *Handler
	log     *slog.Logger
	metrics *control.Metrics
}

// NewDispatcher binds a fresh handler instance from the registration's
// factory.
func NewDispatcher(reg *Registration, logger *slog.Logger, metrics *control.Metrics) *Dispatcher {
	return newDispatcher(reg, reg.factory, logger, metrics)
}

// NewClientDispatcher binds a handler instance for the initiating role,
// where no registration tracks the session.
func NewClientDispatcher(factory Factory, logger *slog.Logger, metrics *control.Metrics) *Dispatcher {
	return newDispatcher(nil, factory, logger, metrics)
}

func newDispatcher(reg *Registration, factory Factory, logger *slog.Logger, metrics *control.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		reg:     reg,
		factory: factory,
		handler: factory.Create(),
		log:     logger,
		metrics: metrics,
	}
}

// Handler returns the bound handler instance.
func (d *Dispatcher) Handler() *Handler { return d.handler }

// HandleOpen implements session.Sink. A session whose registration was
// disposed between instantiation and open is turned away with a
// going-away close; its open callback never fires.
func (d *Dispatcher) HandleOpen(s *session.Session) {
	if d.reg != nil && !d.reg.adopt(s) {
		d.log.Debug("session refused by disposed registration", "session", s.ID())
		_ = s.Close(protocol.CloseReason{
			Code:   protocol.CloseGoingAway,
			Reason: "endpoint disposed",
		})
		return
	}
	if d.handler.OnOpen == nil {
		return
	}
	d.guard(s, "open", func() { d.handler.OnOpen(s) })
}

// HandleMessage implements session.Sink. A non-nil callback return value
// is framed and sent back to the peer on the same session.
func (d *Dispatcher) HandleMessage(s *session.Session, msg session.Message) {
	if d.handler.OnMessage == nil {
		return
	}
	var reply any
	if !d.guard(s, "message", func() { reply = d.handler.OnMessage(s, msg) }) {
		return
	}
	if reply == nil {
		return
	}
	var err error
	switch v := reply.(type) {
	case string:
		err = s.SendText(v)
	case []byte:
		err = s.SendBinary(v)
	default:
		err = fmt.Errorf("%w: unsupported reply type %T", api.ErrInvalidArgument, reply)
	}
	if err != nil {
		d.HandleError(s, api.WrapError(api.ErrCodeIO, "reply send", err))
	}
}

// HandleError implements session.Sink. A panic inside the error callback
// itself is logged and swallowed.
func (d *Dispatcher) HandleError(s *session.Session, err error) {
	if d.handler.OnError == nil {
		d.log.Warn("unhandled session error", "session", s.ID(), "err", err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.metrics.HandlerPanic()
			d.log.Error("panic in error callback", "session", s.ID(), "panic", r)
		}
	}()
	d.handler.OnError(s, err)
}

// HandleClose implements session.Sink. The session guarantees a single
// invocation; the registration's instance-ended hook runs here exactly
// once.
func (d *Dispatcher) HandleClose(s *session.Session, reason protocol.CloseReason) {
	if d.handler.OnClose != nil {
		d.guardClosed(s, func() { d.handler.OnClose(s, reason) })
	}
	if d.reg != nil {
		d.reg.release(s)
	}
	d.factory.OnEnded(d.handler)
}

// guard invokes fn, converting a panic into the error callback followed
// by an abnormal 1011 close. It reports whether fn completed normally.
func (d *Dispatcher) guard(s *session.Session, phase string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			d.metrics.HandlerPanic()
			err := api.WrapError(api.ErrCodeHandler,
				fmt.Sprintf("panic in %s callback", phase),
				fmt.Errorf("%v", r))
			d.HandleError(s, err)
			s.Fail(protocol.CloseReason{
				Code:   protocol.CloseInternalError,
				Reason: "internal endpoint error",
			})
		}
	}()
	fn()
	return true
}

// guardClosed shields the close callback; the session is already
// terminal, so a panic is only logged.
func (d *Dispatcher) guardClosed(s *session.Session, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.HandlerPanic()
			d.log.Error("panic in close callback", "session", s.ID(), "panic", r)
		}
	}()
	fn()
}
