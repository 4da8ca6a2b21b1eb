// File: server/config.go
// Package server runs the accepting role: the listener, the per-connection
// handshake driver, and the wiring from decoded frames to sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"
	"time"

	"github.com/momentics/endpoint-ws/control"
)

// Config holds server settings.
type Config struct {
	// ListenAddr is the TCP address to bind, e.g. ":9001".
	ListenAddr string

	// HandshakeTimeout bounds the upgrade exchange per connection.
	HandshakeTimeout time.Duration

	// CloseTimeout bounds close handshakes initiated by the server.
	CloseTimeout time.Duration

	// ReadBufferSize is the per-connection read chunk size.
	ReadBufferSize int

	// Logger receives structured server logs.
	Logger *slog.Logger

	// Metrics receives container metrics; nil disables collection.
	Metrics *control.Metrics
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":9001",
		HandshakeTimeout: control.DefaultHandshakeTimeout,
		CloseTimeout:     control.DefaultCloseTimeout,
		ReadBufferSize:   control.DefaultReadBufferSize,
		Logger:           slog.Default(),
	}
}

// Option customizes server initialization.
type Option func(*Config)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *control.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithHandshakeTimeout overrides the upgrade deadline.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.HandshakeTimeout = d }
}

// WithCloseTimeout overrides the close-handshake deadline.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Config) { c.CloseTimeout = d }
}

// WithReadBufferSize overrides the read chunk size.
func WithReadBufferSize(n int) Option {
	return func(c *Config) { c.ReadBufferSize = n }
}
