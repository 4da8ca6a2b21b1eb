// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/momentics/endpoint-ws/endpoint"
)

// ErrAlreadyRunning is returned when Serve is called twice.
var ErrAlreadyRunning = errors.New("server already running")

// Server accepts connections and drives them through handshake, frame
// decoding and session dispatch. Connections are fully parallel; one
// connection's work never blocks another's.
type Server struct {
	cfg      *Config
	registry *endpoint.Registry

	mu       sync.Mutex
	listener net.Listener
	running  bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewServer builds a server around the given configuration.
func NewServer(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = DefaultConfig().Logger
	}
	return &Server{
		cfg:      cfg,
		registry: endpoint.NewRegistry(cfg.Logger),
		shutdown: make(chan struct{}),
	}
}

// Registry exposes the endpoint registry for registration and disposal.
func (s *Server) Registry() *endpoint.Registry { return s.registry }

// Register adds an endpoint registration.
func (s *Server) Register(cfg endpoint.Config, factory endpoint.Factory) (*endpoint.Registration, error) {
	return s.registry.Register(cfg, factory)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.listener = ln
	s.mu.Unlock()

	s.cfg.Logger.Info("listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Addr returns the bound listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, disposes every registration with the given
// bounded wait for close handshakes, and waits for connection
// goroutines to drain.
func (s *Server) Shutdown(wait time.Duration) error {
	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		return nil
	default:
	}
	close(s.shutdown)
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.registry.DisposeAll(wait)
	s.wg.Wait()
	return err
}
