// File: client/client.go
// Package client implements the initiating role: dial, client-side
// handshake, and construction of a masked OPEN session.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/control"
	"github.com/momentics/endpoint-ws/endpoint"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/session"
	"github.com/momentics/endpoint-ws/transport"
)

// Connector opens outbound connections. The zero value is usable; it
// dials without a connect timeout.
type Connector struct {
	// ConnectTimeout bounds dialing plus the handshake exchange. A
	// non-positive value means no timeout.
	ConnectTimeout time.Duration

	// Subprotocols is offered to the acceptor in offer order.
	Subprotocols []string

	// Config carries the session limits for opened connections.
	Config endpoint.Config

	// Logger receives structured connector logs; nil uses the default.
	Logger *slog.Logger

	// Metrics receives container metrics; nil disables collection.
	Metrics *control.Metrics
}

// Connect performs the initiating-role handshake against targetURI
// ("ws://host[:port]/path[?query]") and returns an OPEN session bound to
// a fresh handler instance from factory. On timeout, refusal, or
// handshake mismatch the transport is released and no session exists.
func (c *Connector) Connect(factory endpoint.Factory, targetURI string) (*session.Session, error) {
	if factory == nil || targetURI == "" {
		return nil, api.ErrInvalidArgument
	}

	host, target, err := parseTarget(targetURI)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	if c.ConnectTimeout > 0 {
		conn, err = net.DialTimeout("tcp", host, c.ConnectTimeout)
	} else {
		conn, err = net.Dial("tcp", host)
	}
	if err != nil {
		return nil, api.WrapError(api.ErrCodeIO, "dial "+host, err)
	}

	return c.handshake(factory, conn, host, target)
}

// ConnectHandler is Connect with a prebuilt handler instance.
func (c *Connector) ConnectHandler(h *endpoint.Handler, targetURI string) (*session.Session, error) {
	if h == nil {
		return nil, api.ErrInvalidArgument
	}
	return c.Connect(endpoint.InstanceFactory(h), targetURI)
}

// ConnectConn performs the handshake over an already-established
// connection, e.g. one produced by an external substrate or a TLS
// dialer. targetURI supplies the Host header and request target.
func (c *Connector) ConnectConn(factory endpoint.Factory, targetURI string, conn net.Conn) (*session.Session, error) {
	if factory == nil || targetURI == "" || conn == nil {
		return nil, api.ErrInvalidArgument
	}
	host, target, err := parseTarget(targetURI)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c.handshake(factory, conn, host, target)
}

// handshake drives the upgrade exchange, owning conn: any failure
// releases it.
func (c *Connector) handshake(factory endpoint.Factory, conn net.Conn, host, target string) (*session.Session, error) {
	if c.ConnectTimeout > 0 {
		deadline := time.Now().Add(c.ConnectTimeout)
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	key, err := protocol.NewChallengeKey()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Write(protocol.BuildUpgradeRequest(host, target, key, c.Subprotocols)); err != nil {
		_ = conn.Close()
		return nil, api.WrapError(api.ErrCodeIO, "handshake write", err)
	}

	br := bufio.NewReader(conn)
	subprotocol, err := protocol.ReadUpgradeResponse(br, key, c.Subprotocols)
	if err != nil {
		_ = conn.Close()
		return nil, api.WrapError(api.ErrCodeHandshake, "connect "+target, err)
	}

	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	disp := endpoint.NewClientDispatcher(factory, logger, c.Metrics)
	tr := transport.NewNetConn(conn)

	cfg := c.Config.SessionConfig()
	cfg.Logger = logger
	cfg.Metrics = c.Metrics

	_, query := protocol.SplitTarget(target)

	sess := session.New(tr, disp, cfg, session.Info{
		RequestURI:  target,
		Query:       query,
		Subprotocol: subprotocol,
		Masked:      true,
	})

	sess.Open()
	go sess.Serve(br)

	logger.Debug("client session opened", "session", sess.ID(), "target", target)
	return sess, nil
}

// parseTarget splits a ws:// URI into dial host:port and request target.
func parseTarget(targetURI string) (host, target string, err error) {
	u, err := url.Parse(targetURI)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", api.ErrInvalidArgument, err)
	}
	switch u.Scheme {
	case "ws":
	case "wss":
		// TLS setup belongs to the substrate; see ConnectConn.
		return "", "", fmt.Errorf("%w: wss requires an externally established connection", api.ErrNotSupported)
	default:
		return "", "", fmt.Errorf("%w: unsupported scheme %q", api.ErrInvalidArgument, u.Scheme)
	}
	host = u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	target = u.RequestURI()
	if target == "" {
		target = "/"
	}
	return host, target, nil
}
