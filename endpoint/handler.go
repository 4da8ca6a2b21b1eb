// File: endpoint/handler.go
// Package endpoint implements the declarative endpoint model: handler
// descriptions, registrations, the routing registry, and the dispatcher
// binding decoded messages to per-connection handler instances.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/session"
)

// Handler is an explicit handler description: up to four optional
// callback bindings, resolved once at registration time. A handler
// instance is bound to exactly one session, so mutable state captured by
// its closures is isolated per connection and needs no locking.
type Handler struct {
	// OnOpen fires once, before any message is dispatched.
	OnOpen func(s *session.Session)

	// OnMessage fires per complete message (or per fragment in
	// streaming mode). A non-nil return value is framed and sent back
	// on the same session: string as text, []byte as binary.
	OnMessage func(s *session.Session, msg session.Message) any

	// OnClose fires exactly once, on every path to CLOSED.
	OnClose func(s *session.Session, reason protocol.CloseReason)

	// OnError fires on any internal failure attributable to the
	// session, including panics recovered from the other callbacks.
	OnError func(s *session.Session, err error)
}

// Factory produces one handler instance per session and releases it when
// the session has ended.
type Factory interface {
	Create() *Handler
	OnEnded(h *Handler)
}

// FactoryFunc adapts a plain constructor to Factory with a no-op
// OnEnded.
type FactoryFunc func() *Handler

// Create implements Factory.
func (f FactoryFunc) Create() *Handler { return f() }

// OnEnded implements Factory.
func (f FactoryFunc) OnEnded(*Handler) {}

// instanceFactory wraps a prebuilt handler instance for the client role,
// where the caller may hand in the instance directly.
type instanceFactory struct {
	h *Handler
}

// InstanceFactory returns a Factory that always yields h.
func InstanceFactory(h *Handler) Factory { return instanceFactory{h: h} }

func (f instanceFactory) Create() *Handler { return f.h }
func (f instanceFactory) OnEnded(*Handler) {}
