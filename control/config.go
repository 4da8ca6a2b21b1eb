// File: control/config.go
// Package control carries runtime defaults and the metrics surface of the
// container.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import "time"

// Container-wide defaults. Endpoint registrations inherit these unless
// their configuration overrides them.
const (
	// DefaultMaxTextBufferSize bounds reassembled text messages.
	DefaultMaxTextBufferSize = 64 * 1024

	// DefaultMaxBinaryBufferSize bounds reassembled binary messages.
	DefaultMaxBinaryBufferSize = 64 * 1024

	// DefaultAsyncSendTimeout bounds how long a queued asynchronous send
	// may wait before its completion handle fails.
	DefaultAsyncSendTimeout = 10 * time.Second

	// DefaultCloseTimeout bounds the close handshake: after initiating a
	// close, a session waits this long for the peer's close frame before
	// force-terminating the transport.
	DefaultCloseTimeout = 5 * time.Second

	// DefaultIdleTimeout of zero disables idle tracking.
	DefaultIdleTimeout = 0

	// DefaultReadBufferSize is the per-connection read chunk size.
	DefaultReadBufferSize = 16 * 1024

	// DefaultHandshakeTimeout bounds the upgrade exchange on the
	// accepting side.
	DefaultHandshakeTimeout = 10 * time.Second
)
