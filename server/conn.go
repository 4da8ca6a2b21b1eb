// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection driver: a fixed, staged pipeline decided at accept
// time. The handshake negotiator always runs first and hands off
// synchronously to the frame decoder on success; no stage is added or
// removed once bytes have begun flowing.

package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/endpoint"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/session"
	"github.com/momentics/endpoint-ws/transport"
)

func (s *Server) serveConn(conn net.Conn) {
	log := s.cfg.Logger

	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}
	br := bufio.NewReader(conn)

	req, err := protocol.ReadUpgrade(br)
	if err != nil {
		var rej *protocol.RejectionError
		if !errors.As(err, &rej) {
			rej = &protocol.RejectionError{Status: http.StatusBadRequest, Reason: "bad request"}
		}
		s.reject(conn, rej)
		return
	}

	reg, params, ok := s.registry.Match(req.Path)
	if !ok {
		s.reject(conn, &protocol.RejectionError{
			Status: http.StatusNotFound,
			Reason: "no endpoint mapped to " + req.Path,
		})
		return
	}

	disp, err := s.instantiate(reg)
	if err != nil {
		log.Error("endpoint instantiation failed", "path", req.Path, "err", err)
		s.reject(conn, &protocol.RejectionError{
			Status: http.StatusInternalServerError,
			Reason: "endpoint instantiation failed",
		})
		return
	}

	subprotocol := reg.NegotiateSubprotocol(req.Subprotocols)

	_ = conn.SetReadDeadline(time.Time{})
	tr := transport.NewNetConn(conn)

	cfg := reg.SessionConfig()
	cfg.CloseTimeout = s.cfg.CloseTimeout
	cfg.ReadBufferSize = s.cfg.ReadBufferSize
	cfg.Logger = log
	cfg.Metrics = s.cfg.Metrics

	sess := session.New(tr, disp, cfg, session.Info{
		RequestURI:  req.Target,
		Query:       req.Query,
		Subprotocol: subprotocol,
		Extensions:  req.Extensions,
		PathParams:  params,
	})

	// The switching-protocols response must be on the wire before any
	// frame bytes.
	if err := tr.Write(protocol.AcceptResponse(req.Key, subprotocol)); err != nil {
		log.Debug("handshake response write failed", "err", err)
		_ = conn.Close()
		return
	}

	log.Debug("session opened",
		"session", sess.ID(),
		"target", req.Target,
		"pattern", reg.Pattern().String(),
		"subprotocol", subprotocol,
		"remote", conn.RemoteAddr().String(),
	)

	sess.Open()
	sess.Serve(br)
}

// instantiate obtains a handler instance, converting a factory panic
// into an instantiation failure that rejects the handshake.
func (s *Server) instantiate(reg *endpoint.Registration) (d *endpoint.Dispatcher, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("handler factory panic: %v", r)
		}
	}()
	if !reg.Active() {
		return nil, api.ErrRegistrationInactive
	}
	return endpoint.NewDispatcher(reg, s.cfg.Logger, s.cfg.Metrics), nil
}

func (s *Server) reject(conn net.Conn, rej *protocol.RejectionError) {
	s.cfg.Metrics.HandshakeRejected(rej.Status)
	s.cfg.Logger.Debug("handshake rejected",
		"status", rej.Status,
		"reason", rej.Reason,
		"remote", conn.RemoteAddr().String(),
	)
	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}
	_, _ = conn.Write(protocol.RejectResponse(rej.Status, rej.Reason))
	_ = conn.Close()
}
