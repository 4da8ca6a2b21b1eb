// File: api/errors.go
// Package api defines the shared contracts and error surface of endpoint-ws.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument      = fmt.Errorf("invalid argument")
	ErrSessionClosed        = fmt.Errorf("session is closed")
	ErrSessionNotOpen       = fmt.Errorf("session is not open")
	ErrRegistrationInactive = fmt.Errorf("endpoint registration is inactive")
	ErrAlreadyExists        = fmt.Errorf("resource already exists")
	ErrNotFound             = fmt.Errorf("resource not found")
	ErrOperationTimeout     = fmt.Errorf("operation timeout")
	ErrNotSupported         = fmt.Errorf("operation not supported")
	ErrTransportClosed      = fmt.Errorf("transport is closed")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeHandshake
	ErrCodeProtocol
	ErrCodeMessageTooLarge
	ErrCodeTimeout
	ErrCodeIO
	ErrCodeHandler
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps cause with a code and message.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
