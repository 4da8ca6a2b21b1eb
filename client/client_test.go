// File: client/client_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end tests wiring the initiating role against this module's own
// accepting role over loopback TCP.

package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/endpoint"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/server"
	"github.com/momentics/endpoint-ws/session"
)

func startEchoServer(t *testing.T, subprotocols []string) *server.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := server.NewServer(nil, server.WithCloseTimeout(500*time.Millisecond))
	_, err = srv.Register(endpoint.Config{
		PathPattern:  "/echo",
		Subprotocols: subprotocols,
	}, endpoint.FactoryFunc(func() *endpoint.Handler {
		return &endpoint.Handler{
			OnMessage: func(_ *session.Session, msg session.Message) any {
				return "Echo: " + string(msg.Data)
			},
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(time.Second) })
	for srv.Addr() == nil {
		time.Sleep(time.Millisecond)
	}
	return srv
}

func TestConnectAndEcho(t *testing.T) {
	srv := startEchoServer(t, nil)

	msgs := make(chan string, 4)
	closes := make(chan protocol.CloseReason, 1)
	c := &Connector{ConnectTimeout: 2 * time.Second}
	sess, err := c.ConnectHandler(&endpoint.Handler{
		OnMessage: func(_ *session.Session, msg session.Message) any {
			msgs <- string(msg.Data)
			return nil
		},
		OnClose: func(_ *session.Session, r protocol.CloseReason) { closes <- r },
	}, "ws://"+srv.Addr().String()+"/echo?from=client")
	if err != nil {
		t.Fatal(err)
	}

	if sess.State() != session.StateOpen {
		t.Fatalf("state %v", sess.State())
	}
	if sess.RequestURI() != "/echo?from=client" || sess.QueryString() != "from=client" {
		t.Fatalf("identity %q %q", sess.RequestURI(), sess.QueryString())
	}

	if err := sess.SendText("Hello"); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-msgs:
		if got != "Echo: Hello" {
			t.Fatalf("reply %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}

	if err := sess.Close(protocol.CloseReason{Code: protocol.CloseNormal, Reason: "done"}); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-closes:
		if r.Code != protocol.CloseNormal {
			t.Fatalf("close reason %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no close callback")
	}
	if sess.State() != session.StateClosed {
		t.Fatalf("state after close %v", sess.State())
	}
}

func TestConnectNegotiatesSubprotocol(t *testing.T) {
	srv := startEchoServer(t, []string{"chat", "v2"})

	c := &Connector{
		ConnectTimeout: 2 * time.Second,
		Subprotocols:   []string{"v2"},
	}
	sess, err := c.ConnectHandler(&endpoint.Handler{}, "ws://"+srv.Addr().String()+"/echo")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close(protocol.CloseReason{Code: protocol.CloseNormal})

	if sess.Subprotocol() != "v2" {
		t.Fatalf("negotiated %q", sess.Subprotocol())
	}
}

func TestConnectRejectedByServer(t *testing.T) {
	srv := startEchoServer(t, nil)

	c := &Connector{ConnectTimeout: 2 * time.Second}
	_, err := c.ConnectHandler(&endpoint.Handler{}, "ws://"+srv.Addr().String()+"/unmapped")
	if err == nil {
		t.Fatal("connect to unmapped path succeeded")
	}
	var e *api.Error
	if !errors.As(err, &e) || e.Code != api.ErrCodeHandshake {
		t.Fatalf("error %v", err)
	}
}

func TestConnectArgumentValidation(t *testing.T) {
	c := &Connector{}
	if _, err := c.Connect(nil, "ws://x/y"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("nil factory: %v", err)
	}
	if _, err := c.ConnectHandler(&endpoint.Handler{}, ""); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("empty target: %v", err)
	}
	if _, err := c.ConnectHandler(&endpoint.Handler{}, "http://h/p"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("http scheme: %v", err)
	}
	if _, err := c.ConnectHandler(&endpoint.Handler{}, "wss://h/p"); !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("wss scheme: %v", err)
	}
	if _, err := c.ConnectConn(endpoint.InstanceFactory(&endpoint.Handler{}), "ws://h/p", nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("nil conn: %v", err)
	}
}

func TestConnectTimeoutIsBounded(t *testing.T) {
	// Connection refused or timed out, either way the bound holds.
	c := &Connector{ConnectTimeout: 100 * time.Millisecond}
	start := time.Now()
	_, err := c.ConnectHandler(&endpoint.Handler{}, "ws://203.0.113.1:9/x")
	if err == nil {
		t.Fatal("connect to a blackhole address succeeded")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("connect took %v, bound was 100ms", elapsed)
	}
}

func TestConnectConn(t *testing.T) {
	srv := startEchoServer(t, nil)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	msgs := make(chan string, 1)
	c := &Connector{ConnectTimeout: 2 * time.Second}
	sess, err := c.ConnectConn(endpoint.InstanceFactory(&endpoint.Handler{
		OnMessage: func(_ *session.Session, msg session.Message) any {
			msgs <- string(msg.Data)
			return nil
		},
	}), "ws://"+srv.Addr().String()+"/echo", conn)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close(protocol.CloseReason{Code: protocol.CloseNormal})

	if err := sess.SendText("over external conn"); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-msgs:
		if got != "Echo: over external conn" {
			t.Fatalf("reply %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}
}
