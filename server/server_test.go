// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Integration tests against an independent WebSocket implementation
// (gorilla/websocket) acting as the remote peer.

package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/momentics/endpoint-ws/endpoint"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/session"
)

func startServer(t *testing.T, register func(*Server)) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(nil,
		WithHandshakeTimeout(2*time.Second),
		WithCloseTimeout(500*time.Millisecond),
	)
	register(srv)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(time.Second) })
	for srv.Addr() == nil {
		time.Sleep(time.Millisecond)
	}
	return srv
}

func wsURL(srv *Server, target string) string {
	return "ws://" + srv.Addr().String() + target
}

func dialWS(t *testing.T, srv *Server, target string) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, target), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", target, err)
	}
	if resp.StatusCode != 101 {
		t.Fatalf("handshake status %d", resp.StatusCode)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEchoEndpoint(t *testing.T) {
	uris := make(chan [2]string, 1)
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/echo"},
			endpoint.FactoryFunc(func() *endpoint.Handler {
				return &endpoint.Handler{
					OnOpen: func(sess *session.Session) {
						uris <- [2]string{sess.RequestURI(), sess.QueryString()}
					},
					OnMessage: func(_ *session.Session, msg session.Message) any {
						return "Echo: " + string(msg.Data)
					},
				}
			}))
		if err != nil {
			t.Fatal(err)
		}
	})

	c := dialWS(t, srv, "/echo?test=value123")

	select {
	case got := <-uris:
		if got[0] != "/echo?test=value123" || got[1] != "test=value123" {
			t.Fatalf("session identity %q %q", got[0], got[1])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("open callback never fired")
	}

	if err := c.WriteMessage(websocket.TextMessage, []byte("Hello")); err != nil {
		t.Fatal(err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, reply, err := c.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.TextMessage || string(reply) != "Echo: Hello" {
		t.Fatalf("reply %d %q", kind, reply)
	}
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestSequentialDelivery(t *testing.T) {
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/reverse"},
			endpoint.FactoryFunc(func() *endpoint.Handler {
				return &endpoint.Handler{
					OnMessage: func(_ *session.Session, msg session.Message) any {
						return reverseString(string(msg.Data))
					},
				}
			}))
		if err != nil {
			t.Fatal(err)
		}
	})

	c := dialWS(t, srv, "/reverse")
	inputs := []string{"Hello", "World", "Test"}
	for _, in := range inputs {
		if err := c.WriteMessage(websocket.TextMessage, []byte(in)); err != nil {
			t.Fatal(err)
		}
	}
	for _, in := range inputs {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, reply, err := c.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if want := reverseString(in); string(reply) != want {
			t.Fatalf("got %q, want %q", reply, want)
		}
	}
}

func TestSessionIsolation(t *testing.T) {
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/count"},
			endpoint.FactoryFunc(func() *endpoint.Handler {
				count := 0
				return &endpoint.Handler{
					OnMessage: func(*session.Session, session.Message) any {
						count++
						return fmt.Sprintf("%d", count)
					},
				}
			}))
		if err != nil {
			t.Fatal(err)
		}
	})

	a := dialWS(t, srv, "/count")
	b := dialWS(t, srv, "/count")

	roundTrip := func(c *websocket.Conn) string {
		t.Helper()
		if err := c.WriteMessage(websocket.TextMessage, []byte("x")); err != nil {
			t.Fatal(err)
		}
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, reply, err := c.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		return string(reply)
	}

	if got := roundTrip(a); got != "1" {
		t.Fatalf("conn A first: %q", got)
	}
	if got := roundTrip(a); got != "2" {
		t.Fatalf("conn A second: %q", got)
	}
	if got := roundTrip(b); got != "1" {
		t.Fatalf("conn B: %q", got)
	}
}

func TestPathParameters(t *testing.T) {
	params := make(chan map[string]string, 1)
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/rooms/:room/users/:user"},
			endpoint.FactoryFunc(func() *endpoint.Handler {
				return &endpoint.Handler{
					OnOpen: func(sess *session.Session) { params <- sess.PathParameters() },
				}
			}))
		if err != nil {
			t.Fatal(err)
		}
	})

	dialWS(t, srv, "/rooms/lobby/users/alice")
	select {
	case p := <-params:
		if p["room"] != "lobby" || p["user"] != "alice" {
			t.Fatalf("path params %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("open callback never fired")
	}
}

func TestUnmappedPathRejected(t *testing.T) {
	srv := startServer(t, func(s *Server) {})
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/nowhere"), nil)
	if err == nil {
		t.Fatal("dial to unmapped path succeeded")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("response %+v", resp)
	}
}

func TestSubprotocolNegotiation(t *testing.T) {
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{
			PathPattern:  "/chat",
			Subprotocols: []string{"chat", "v2"},
		}, endpoint.FactoryFunc(func() *endpoint.Handler { return &endpoint.Handler{} }))
		if err != nil {
			t.Fatal(err)
		}
	})

	d := websocket.Dialer{Subprotocols: []string{"v2"}}
	c, resp, err := d.Dial(wsURL(srv, "/chat"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := resp.Header.Get(protocol.HeaderSecWebSocketProt); got != "v2" {
		t.Fatalf("negotiated %q", got)
	}
	if c.Subprotocol() != "v2" {
		t.Fatalf("client recorded %q", c.Subprotocol())
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/v"},
			endpoint.FactoryFunc(func() *endpoint.Handler { return &endpoint.Handler{} }))
		if err != nil {
			t.Fatal(err)
		}
	})

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	req := "GET /v HTTP/1.1\r\nHost: h\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		protocol.HeaderSecWebSocketKey + ": dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		protocol.HeaderSecWebSocketVer + ": 12\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	resp := string(buf[:n])
	if !strings.HasPrefix(resp, "HTTP/1.1 426") {
		t.Fatalf("response %q", resp)
	}
	if !strings.Contains(resp, protocol.HeaderSecWebSocketVer+": 13") {
		t.Fatalf("426 response must advertise version 13: %q", resp)
	}
}

func TestClientInitiatedClose(t *testing.T) {
	closes := make(chan protocol.CloseReason, 1)
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/bye"},
			endpoint.FactoryFunc(func() *endpoint.Handler {
				return &endpoint.Handler{
					OnClose: func(_ *session.Session, c protocol.CloseReason) { closes <- c },
				}
			}))
		if err != nil {
			t.Fatal(err)
		}
	})

	c := dialWS(t, srv, "/bye")
	deadline := time.Now().Add(2 * time.Second)
	if err := c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), deadline); err != nil {
		t.Fatal(err)
	}

	// The server echoes the close frame back.
	_ = c.SetReadDeadline(deadline)
	_, _, err := c.ReadMessage()
	var cerr *websocket.CloseError
	if !errors.As(err, &cerr) || cerr.Code != websocket.CloseNormalClosure {
		t.Fatalf("read after close: %v", err)
	}

	select {
	case got := <-closes:
		if got.Code != protocol.CloseNormal || got.Reason != "done" {
			t.Fatalf("close callback %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no close callback")
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	srv := startServer(t, func(s *Server) {
		_, err := s.Register(endpoint.Config{PathPattern: "/long"},
			endpoint.FactoryFunc(func() *endpoint.Handler { return &endpoint.Handler{} }))
		if err != nil {
			t.Fatal(err)
		}
	})

	c := dialWS(t, srv, "/long")
	done := make(chan error, 1)
	go func() { done <- srv.Shutdown(time.Second) }()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	var cerr *websocket.CloseError
	if !errors.As(err, &cerr) || cerr.Code != websocket.CloseGoingAway {
		t.Fatalf("read during shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown never returned")
	}
}
