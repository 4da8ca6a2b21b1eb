// File: endpoint/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"time"

	"github.com/momentics/endpoint-ws/session"
)

// Config is the registration configuration. It is fixed at registration
// time; sessions derive their limits from it.
type Config struct {
	// PathPattern is the literal or templated path this endpoint is
	// bound to, e.g. "/echo" or "/rooms/:room".
	PathPattern string

	// Subprotocols is the allow-list intersected with the client's
	// offer; the first mutually offered value wins. Empty means the
	// endpoint negotiates no subprotocol.
	Subprotocols []string

	// Extensions is the extension allow-list. The container negotiates
	// no extensions; the list is recorded for the session surface.
	Extensions []string

	// MaxIdleTimeout closes sessions that receive no frames within the
	// window. Zero disables idle tracking.
	MaxIdleTimeout time.Duration

	// MaxTextBufferSize bounds reassembled text messages.
	MaxTextBufferSize int64

	// MaxBinaryBufferSize bounds reassembled binary messages.
	MaxBinaryBufferSize int64

	// AsyncSendTimeout bounds queued asynchronous sends.
	AsyncSendTimeout time.Duration

	// StreamFragments delivers each fragment to the message callback as
	// it arrives instead of reassembling whole messages.
	StreamFragments bool

	// WantPong routes pong payloads to the message callback.
	WantPong bool
}

// SessionConfig derives per-session limits from the registration
// configuration. Container concerns (close timeout, read buffer, logger,
// metrics) are filled in by the caller.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		IdleTimeout:          c.MaxIdleTimeout,
		MaxTextMessageSize:   c.MaxTextBufferSize,
		MaxBinaryMessageSize: c.MaxBinaryBufferSize,
		AsyncSendTimeout:     c.AsyncSendTimeout,
		StreamFragments:      c.StreamFragments,
		WantPong:             c.WantPong,
	}
}
