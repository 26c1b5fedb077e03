// Package codec provides structured serialization over the segmented byte
// container: fixed-width little-endian primitives, length-prefixed byte
// strings, and count-prefixed sequences. Both ends must agree on this format
// out of band; no per-value type tags are written.
package codec

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/loomq/loom/internal/payload"
)

var (
	// ErrFinished reports use of a serializer after Finish consumed it.
	ErrFinished = errors.New("codec: serializer already finished")
	// ErrDecodeMismatch reports a decoded length or count inconsistent with
	// the remaining data, i.e. the read side does not match what was written.
	ErrDecodeMismatch = errors.New("codec: decode mismatch")
)

// byteOrder is the one wire endianness used across the system.
var byteOrder = binary.LittleEndian

// Serializer appends structured values to a payload under construction.
// Finish converts the accumulated bytes into an immutable container and
// consumes the serializer; all writes after Finish fail with ErrFinished.
type Serializer struct {
	buf  []byte
	done bool
}

// NewSerializer returns an empty serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Len returns the number of bytes written so far.
func (s *Serializer) Len() int {
	return len(s.buf)
}

func (s *Serializer) append(p ...byte) error {
	if s.done {
		return ErrFinished
	}
	s.buf = append(s.buf, p...)
	return nil
}

// WriteBool writes a bool as one byte, 0 or 1.
func (s *Serializer) WriteBool(v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	return s.append(b)
}

// WriteUint8 writes one byte.
func (s *Serializer) WriteUint8(v uint8) error {
	return s.append(v)
}

// WriteUint16 writes a fixed-width little-endian uint16.
func (s *Serializer) WriteUint16(v uint16) error {
	if s.done {
		return ErrFinished
	}
	s.buf = byteOrder.AppendUint16(s.buf, v)
	return nil
}

// WriteUint32 writes a fixed-width little-endian uint32.
func (s *Serializer) WriteUint32(v uint32) error {
	if s.done {
		return ErrFinished
	}
	s.buf = byteOrder.AppendUint32(s.buf, v)
	return nil
}

// WriteUint64 writes a fixed-width little-endian uint64.
func (s *Serializer) WriteUint64(v uint64) error {
	if s.done {
		return ErrFinished
	}
	s.buf = byteOrder.AppendUint64(s.buf, v)
	return nil
}

// WriteInt8 writes one byte.
func (s *Serializer) WriteInt8(v int8) error {
	return s.append(byte(v))
}

// WriteInt16 writes a fixed-width little-endian int16.
func (s *Serializer) WriteInt16(v int16) error {
	return s.WriteUint16(uint16(v))
}

// WriteInt32 writes a fixed-width little-endian int32.
func (s *Serializer) WriteInt32(v int32) error {
	return s.WriteUint32(uint32(v))
}

// WriteInt64 writes a fixed-width little-endian int64.
func (s *Serializer) WriteInt64(v int64) error {
	return s.WriteUint64(uint64(v))
}

// WriteFloat32 writes an IEEE 754 float32 in little-endian bit order.
func (s *Serializer) WriteFloat32(v float32) error {
	return s.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 writes an IEEE 754 float64 in little-endian bit order.
func (s *Serializer) WriteFloat64(v float64) error {
	return s.WriteUint64(math.Float64bits(v))
}

// WriteBytes writes a uvarint length prefix followed by the raw bytes.
func (s *Serializer) WriteBytes(v []byte) error {
	if s.done {
		return ErrFinished
	}
	s.buf = binary.AppendUvarint(s.buf, uint64(len(v)))
	s.buf = append(s.buf, v...)
	return nil
}

// WriteString writes a string as a length-prefixed byte string.
func (s *Serializer) WriteString(v string) error {
	return s.WriteBytes([]byte(v))
}

// WriteSequenceLength writes the element count of a sequence. The caller
// must subsequently write exactly n elements; the contract is checked only
// at read time.
func (s *Serializer) WriteSequenceLength(n int) error {
	if s.done {
		return ErrFinished
	}
	s.buf = binary.AppendUvarint(s.buf, uint64(n))
	return nil
}

// Finish converts the accumulated bytes into an immutable payload and
// consumes the serializer. The payload wraps the write buffer without
// copying.
func (s *Serializer) Finish() (*payload.Bytes, error) {
	if s.done {
		return nil, ErrFinished
	}
	s.done = true
	buf := s.buf
	s.buf = nil
	return payload.Wrap(buf, nil), nil
}
