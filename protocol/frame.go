// File: protocol/frame.go
// Package protocol implements the RFC 6455 wire format: frame model,
// incremental decoding, encoding with masking, and the upgrade handshake.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

// Opcode identifies the type of a WebSocket frame per RFC 6455 Section 5.2.
type Opcode byte

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsValid reports whether the opcode is one RFC 6455 defines.
func (o Opcode) IsValid() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary,
		OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// IsControl reports whether the opcode denotes a control frame.
func (o Opcode) IsControl() bool {
	return o == OpcodeClose || o == OpcodePing || o == OpcodePong
}

// IsData reports whether the opcode denotes a data frame.
func (o Opcode) IsData() bool {
	return o == OpcodeContinuation || o == OpcodeText || o == OpcodeBinary
}

// String returns the opcode mnemonic.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "CONTINUATION"
	case OpcodeText:
		return "TEXT"
	case OpcodeBinary:
		return "BINARY"
	case OpcodeClose:
		return "CLOSE"
	case OpcodePing:
		return "PING"
	case OpcodePong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// Header bit layout of the first two frame bytes.
const (
	finBit    = 0x80
	rsvMask   = 0x70
	opcodeBit = 0x0F
	maskBit   = 0x80
	lenMask   = 0x7F
)

// MaxControlPayload is the payload ceiling for control frames (RFC 6455 5.5).
const MaxControlPayload = 125

// Frame represents one WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// NewFrame creates a frame with the given opcode and payload.
func NewFrame(opcode Opcode, payload []byte, fin bool) *Frame {
	return &Frame{Fin: fin, Opcode: opcode, Payload: payload}
}

// maskBytes applies the cyclic 4-byte XOR in place, keyed by position
// modulo 4 starting at pos. Masking and unmasking are the same operation.
func maskBytes(p []byte, key [4]byte, pos int) {
	for i := range p {
		p[i] ^= key[(pos+i)%4]
	}
}
