//go:build !linux
// +build !linux

// File: transport/listen_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "syscall"

// listenControl is a no-op on platforms without the linux socket-option
// path.
func listenControl(network, address string, c syscall.RawConn) error {
	return nil
}
