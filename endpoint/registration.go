// File: endpoint/registration.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/endpoint-ws/router"
	"github.com/momentics/endpoint-ws/session"
)

// Registration binds a compiled path pattern to a handler factory and
// configuration. It is immutable after creation except for the active
// flag, which disposal flips before draining live sessions.
type Registration struct {
	cfg     Config
	pattern *router.Pattern
	factory Factory

	active atomic.Bool

	mu       sync.Mutex
	sessions map[*session.Session]struct{}
}

func newRegistration(cfg Config, pattern *router.Pattern, factory Factory) *Registration {
	r := &Registration{
		cfg:      cfg,
		pattern:  pattern,
		factory:  factory,
		sessions: make(map[*session.Session]struct{}),
	}
	r.active.Store(true)
	return r
}

// Config returns the registration configuration.
func (r *Registration) Config() Config { return r.cfg }

// Pattern returns the compiled path pattern.
func (r *Registration) Pattern() *router.Pattern { return r.pattern }

// SessionConfig derives the per-session limits from the registration
// configuration.
func (r *Registration) SessionConfig() session.Config {
	return r.cfg.SessionConfig()
}

// Active reports whether the registration still admits new sessions.
func (r *Registration) Active() bool { return r.active.Load() }

// NegotiateSubprotocol intersects the client's offer with the allow-list
// and selects the first mutually offered value. An empty intersection
// negotiates no subprotocol; that is not a failure.
func (r *Registration) NegotiateSubprotocol(offered []string) string {
	if len(r.cfg.Subprotocols) == 0 {
		return ""
	}
	for _, o := range offered {
		for _, allowed := range r.cfg.Subprotocols {
			if o == allowed {
				return o
			}
		}
	}
	return ""
}

// SessionCount returns the number of currently bound sessions.
func (r *Registration) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// adopt binds a session to the registration. The active re-check runs
// under the same mutex disposal uses to flip the flag and snapshot the
// session set, so a session is either visible to the disposal drain or
// rejected here; it cannot slip between the two.
func (r *Registration) adopt(s *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active.Load() {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

// deactivate flips the registration inactive under the session-set
// mutex. It reports whether this call performed the flip.
func (r *Registration) deactivate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active.Load() {
		return false
	}
	r.active.Store(false)
	return true
}

func (r *Registration) release(s *session.Session) {
	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

func (r *Registration) snapshot() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}
