// File: endpoint/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The read-mostly registry from path pattern to registration. Matching
// priority: exact literal beats templated; among templated patterns more
// literal segments beat fewer; remaining ties go to the earliest
// registration. Disposal flips the registration inactive before draining
// live sessions, so in-flight matches never race teardown.

package endpoint

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/protocol"
	"github.com/momentics/endpoint-ws/router"
)

// Registry holds the endpoint registrations of one container.
type Registry struct {
	mu      sync.RWMutex
	exact   map[string]*Registration
	ordered []*Registration
	log     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		exact: make(map[string]*Registration),
		log:   logger,
	}
}

// Register compiles the path pattern and adds a registration.
func (r *Registry) Register(cfg Config, factory Factory) (*Registration, error) {
	if factory == nil {
		return nil, api.ErrInvalidArgument
	}
	pattern, err := router.Compile(cfg.PathPattern)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if pattern.IsLiteral() {
		if _, dup := r.exact[cfg.PathPattern]; dup {
			return nil, fmt.Errorf("%w: endpoint %q", api.ErrAlreadyExists, cfg.PathPattern)
		}
	} else {
		for _, existing := range r.ordered {
			if existing.pattern.String() == pattern.String() {
				return nil, fmt.Errorf("%w: endpoint %q", api.ErrAlreadyExists, cfg.PathPattern)
			}
		}
	}

	reg := newRegistration(cfg, pattern, factory)
	if pattern.IsLiteral() {
		r.exact[cfg.PathPattern] = reg
	}
	r.ordered = append(r.ordered, reg)
	r.log.Debug("endpoint registered", "pattern", cfg.PathPattern)
	return reg, nil
}

// Match resolves a request path (query excluded) to an active
// registration, binding any templated path variables.
func (r *Registry) Match(path string) (*Registration, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.exact[path]; ok && reg.Active() {
		return reg, nil, true
	}

	var (
		best       *Registration
		bestParams map[string]string
		bestLits   = -1
	)
	for _, reg := range r.ordered {
		if reg.pattern.IsLiteral() || !reg.Active() {
			continue
		}
		params, ok := reg.pattern.Match(path)
		if !ok {
			continue
		}
		// Strictly-greater keeps the earliest registration on ties.
		if reg.pattern.LiteralSegments() > bestLits {
			best, bestParams, bestLits = reg, params, reg.pattern.LiteralSegments()
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best, bestParams, true
}

// Registrations returns a snapshot of all registrations in registration
// order.
func (r *Registry) Registrations() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Dispose deactivates a registration, initiates a going-away close on
// every bound session, and waits up to wait for their close handshakes
// before force-terminating stragglers.
func (r *Registry) Dispose(reg *Registration, wait time.Duration) {
	if reg == nil || !reg.deactivate() {
		return
	}

	live := reg.snapshot()
	for _, s := range live {
		_ = s.Close(protocol.CloseReason{Code: protocol.CloseGoingAway, Reason: "endpoint disposed"})
	}

	deadline := time.Now().Add(wait)
	for _, s := range live {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.ForceClose()
			continue
		}
		select {
		case <-s.Done():
		case <-time.After(remaining):
			s.ForceClose()
		}
	}

	r.mu.Lock()
	if reg.pattern.IsLiteral() {
		delete(r.exact, reg.pattern.String())
	}
	for i, existing := range r.ordered {
		if existing == reg {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.log.Debug("endpoint disposed", "pattern", reg.pattern.String())
}

// DisposeAll disposes every registration, used at container shutdown.
func (r *Registry) DisposeAll(wait time.Duration) {
	for _, reg := range r.Registrations() {
		r.Dispose(reg, wait)
	}
}
