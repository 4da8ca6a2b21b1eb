// File: protocol/close.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Close codes and the close-frame payload codec per RFC 6455 Section 7.4.

package protocol

import (
	"encoding/binary"
	"unicode/utf8"
)

// Close codes per RFC 6455 Section 7.4.1. Codes 4000-4999 are reserved
// for application use.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	CloseNoStatus        = 1005
	CloseAbnormal        = 1006
	CloseInvalidPayload  = 1007
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
	CloseInternalError   = 1011
)

// MaxCloseReasonBytes bounds the UTF-8 reason phrase: 125 bytes of control
// payload minus the 2-byte code.
const MaxCloseReasonBytes = 123

// CloseReason carries the numeric close code and optional reason phrase
// exchanged during connection termination.
type CloseReason struct {
	Code   int
	Reason string
}

// wireable reports whether the code may appear on the wire. 1005 and 1006
// are reporting-only values (RFC 6455 7.4.1).
func wireable(code int) bool {
	switch {
	case code == CloseNoStatus || code == CloseAbnormal:
		return false
	case code >= 1000 && code <= 1011 && code != 1004:
		return true
	case code >= 3000 && code <= 4999:
		return true
	default:
		return false
	}
}

// EncodePayload serializes the close reason into a close-frame payload.
// Codes that must not go on the wire yield an empty payload. The reason
// phrase is truncated at a rune boundary to fit MaxCloseReasonBytes.
func (r CloseReason) EncodePayload() []byte {
	if !wireable(r.Code) {
		return nil
	}
	reason := r.Reason
	for len(reason) > MaxCloseReasonBytes {
		_, size := utf8.DecodeLastRuneInString(reason)
		reason = reason[:len(reason)-size]
	}
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(r.Code))
	copy(p[2:], reason)
	return p
}

// ParseClosePayload decodes a close-frame payload into a CloseReason.
// An empty payload means the peer sent no status (1005). A 1-byte payload
// or a non-UTF-8 reason is a protocol violation.
func ParseClosePayload(p []byte) (CloseReason, error) {
	switch {
	case len(p) == 0:
		return CloseReason{Code: CloseNoStatus}, nil
	case len(p) == 1:
		return CloseReason{}, &ViolationError{
			Code:   CloseProtocolError,
			Reason: "close payload of one byte",
		}
	}
	code := int(binary.BigEndian.Uint16(p))
	if !wireable(code) {
		return CloseReason{}, &ViolationError{
			Code:   CloseProtocolError,
			Reason: "invalid close code",
		}
	}
	reason := p[2:]
	if !utf8.Valid(reason) {
		return CloseReason{}, &ViolationError{
			Code:   CloseInvalidPayload,
			Reason: "close reason is not valid UTF-8",
		}
	}
	return CloseReason{Code: code, Reason: string(reason)}, nil
}
