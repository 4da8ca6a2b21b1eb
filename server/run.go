// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/endpoint-ws/transport"

// ListenAndServe binds the configured address and serves until
// Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := transport.Listen(s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}
