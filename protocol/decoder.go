// File: protocol/decoder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental frame decoder. The decoder owns a connection-scoped parse
// cursor: bytes arrive in arbitrary slices via Push, and Next yields a
// frame only once a complete one has accumulated, resuming from saved
// state across deliveries.

package protocol

import (
	"encoding/binary"
	"fmt"
)

// ViolationError reports a protocol violation together with the close
// code the session must terminate with.
type ViolationError struct {
	Code   int
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("protocol violation (%d): %s", e.Code, e.Reason)
}

// Decoder incrementally parses WebSocket frames from a byte stream.
// The zero value is not usable; construct with NewDecoder.
type Decoder struct {
	// maxPayload bounds a single frame's payload. Zero means no bound
	// beyond the 64-bit length ladder itself.
	maxPayload int64
	// requireMask enforces the accepting-role rule that every inbound
	// frame must carry a mask (RFC 6455 5.1).
	requireMask bool

	buf []byte
	off int
}

// NewDecoder constructs a decoder. requireMask selects the accepting-role
// masking rule; maxPayload caps single-frame payload size.
func NewDecoder(maxPayload int64, requireMask bool) *Decoder {
	return &Decoder{maxPayload: maxPayload, requireMask: requireMask}
}

// Push appends newly received bytes to the parse buffer.
func (d *Decoder) Push(p []byte) {
	if d.off > 0 && d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of unconsumed bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// Next returns the next complete frame, or (nil, nil) when more bytes are
// needed. A non-nil error is always a *ViolationError; the decoder must
// not be used afterwards.
func (d *Decoder) Next() (*Frame, error) {
	raw := d.buf[d.off:]
	if len(raw) < 2 {
		return nil, nil
	}

	if raw[0]&rsvMask != 0 {
		return nil, &ViolationError{Code: CloseProtocolError, Reason: "reserved bits set"}
	}
	fin := raw[0]&finBit != 0
	opcode := Opcode(raw[0] & opcodeBit)
	masked := raw[1]&maskBit != 0
	length := int64(raw[1] & lenMask)
	off := 2

	if !opcode.IsValid() {
		return nil, &ViolationError{Code: CloseProtocolError, Reason: "unknown opcode " + opcode.String()}
	}
	if opcode.IsControl() {
		if !fin {
			return nil, &ViolationError{Code: CloseProtocolError, Reason: "fragmented control frame"}
		}
		if length > MaxControlPayload {
			return nil, &ViolationError{Code: CloseProtocolError, Reason: "control frame payload exceeds 125 bytes"}
		}
	}
	if d.requireMask && !masked {
		return nil, &ViolationError{Code: CloseProtocolError, Reason: "unmasked frame from initiating peer"}
	}

	switch length {
	case 126:
		if len(raw) < off+2 {
			return nil, nil
		}
		length = int64(binary.BigEndian.Uint16(raw[off:]))
		off += 2
	case 127:
		if len(raw) < off+8 {
			return nil, nil
		}
		u := binary.BigEndian.Uint64(raw[off:])
		if u > 1<<62 {
			return nil, &ViolationError{Code: CloseProtocolError, Reason: "payload length overflow"}
		}
		length = int64(u)
		off += 8
	}

	if d.maxPayload > 0 && length > d.maxPayload {
		return nil, &ViolationError{Code: CloseMessageTooBig, Reason: "frame payload exceeds configured maximum"}
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < off+4 {
			return nil, nil
		}
		copy(maskKey[:], raw[off:off+4])
		off += 4
	}

	total := off + int(length)
	if len(raw) < total {
		return nil, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[off:total])
	if masked {
		maskBytes(payload, maskKey, 0)
	}
	d.off += total

	return &Frame{
		Fin:     fin,
		Opcode:  opcode,
		Masked:  masked,
		MaskKey: maskKey,
		Payload: payload,
	}, nil
}
