// File: protocol/encoder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame serialization with the minimal 7/16/64-bit length ladder. The
// initiating role masks payloads with a fresh crypto/rand key per frame;
// the accepting role never sets the mask bit.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
)

// NewMaskKey returns a fresh 4-byte masking key.
func NewMaskKey() [4]byte {
	var key [4]byte
	// rand.Read on the crypto source does not fail in practice; a zero
	// key on the impossible path still yields a wire-legal frame.
	_, _ = rand.Read(key[:])
	return key
}

// AppendFrame serializes f onto dst and returns the extended slice.
// When mask is true a fresh key is generated and the payload copy in the
// output is masked; f.Payload itself is left untouched.
func AppendFrame(dst []byte, f *Frame, mask bool) []byte {
	var b0 byte
	if f.Fin {
		b0 = finBit
	}
	b0 |= byte(f.Opcode) & opcodeBit

	var mb byte
	if mask {
		mb = maskBit
	}

	plen := len(f.Payload)
	dst = append(dst, b0)
	switch {
	case plen <= 125:
		dst = append(dst, byte(plen)|mb)
	case plen <= 0xFFFF:
		dst = append(dst, 126|mb)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(plen))
		dst = append(dst, ext[:]...)
	default:
		dst = append(dst, 127|mb)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(plen))
		dst = append(dst, ext[:]...)
	}

	if mask {
		key := NewMaskKey()
		dst = append(dst, key[:]...)
		start := len(dst)
		dst = append(dst, f.Payload...)
		maskBytes(dst[start:], key, 0)
		return dst
	}

	return append(dst, f.Payload...)
}

// EncodeFrame serializes f into a newly allocated buffer.
func EncodeFrame(f *Frame, mask bool) []byte {
	return AppendFrame(make([]byte, 0, 14+len(f.Payload)), f, mask)
}
