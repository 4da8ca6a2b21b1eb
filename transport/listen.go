// File: transport/listen.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Listen opens the accepting TCP socket with the platform socket options
// applied (SO_REUSEADDR on linux).
func Listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl}
	return lc.Listen(context.Background(), "tcp", addr)
}
