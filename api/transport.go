// File: api/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Defines the transport abstraction: the byte-stream substrate a session
// writes to and the server/client read loops pull from. Implementations may
// be backed by Go's net.Conn or by custom event-loop transports.

package api

import (
	"net"
	"time"
)

// Transport abstracts a full-duplex byte stream underneath one session.
// Frame bytes go out through Write; the owning read loop pulls inbound
// bytes through Read. Close terminates the stream in both directions.
type Transport interface {
	// Read reads into a preallocated buffer.
	Read(p []byte) (n int, err error)

	// Write writes the entire buffer or returns an error.
	Write(p []byte) error

	// Close shuts down the connection and notifies upstream layers.
	Close() error

	// RemoteAddr returns the peer address, or nil if unknown.
	RemoteAddr() net.Addr

	// SetReadDeadline bounds the next Read. Zero clears the deadline.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline bounds subsequent Writes. Zero clears the deadline.
	SetWriteDeadline(t time.Time) error

	// Secure reports whether the stream is protected by transport security.
	Secure() bool
}
