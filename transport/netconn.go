// File: transport/netconn.go
// Package transport adapts net.Conn streams to the api.Transport
// contract and provides the TCP listener used by the accepting role.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"crypto/tls"
	"net"
	"time"
)

// NetConn adapts a net.Conn to api.Transport.
type NetConn struct {
	conn   net.Conn
	secure bool
}

// NewNetConn wraps conn. The secure flag is detected for *tls.Conn and
// may be forced with NewSecureNetConn when termination happens upstream.
func NewNetConn(conn net.Conn) *NetConn {
	_, isTLS := conn.(*tls.Conn)
	return &NetConn{conn: conn, secure: isTLS}
}

// NewSecureNetConn wraps conn and marks the transport as secured.
func NewSecureNetConn(conn net.Conn) *NetConn {
	return &NetConn{conn: conn, secure: true}
}

// Read implements api.Transport.
func (n *NetConn) Read(p []byte) (int, error) {
	return n.conn.Read(p)
}

// Write implements api.Transport. net.Conn.Write already writes the full
// buffer or returns an error.
func (n *NetConn) Write(p []byte) error {
	_, err := n.conn.Write(p)
	return err
}

// Close implements api.Transport.
func (n *NetConn) Close() error {
	return n.conn.Close()
}

// RemoteAddr implements api.Transport.
func (n *NetConn) RemoteAddr() net.Addr {
	return n.conn.RemoteAddr()
}

// SetReadDeadline implements api.Transport.
func (n *NetConn) SetReadDeadline(t time.Time) error {
	return n.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements api.Transport.
func (n *NetConn) SetWriteDeadline(t time.Time) error {
	return n.conn.SetWriteDeadline(t)
}

// Secure implements api.Transport.
func (n *NetConn) Secure() bool {
	return n.secure
}
