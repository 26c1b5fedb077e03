package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/loomq/loom/internal/payload"
)

// Deserializer reads structured values back from a payload. Reads must
// mirror the writes in type and order; mismatches are detected best-effort
// as ErrDecodeMismatch or payload.ErrInsufficientData.
type Deserializer struct {
	r *payload.Reader
}

// NewDeserializer returns a deserializer positioned at the start of b.
// The payload must stay alive while the deserializer is in use.
func NewDeserializer(b *payload.Bytes) *Deserializer {
	return &Deserializer{r: b.Reader()}
}

// Remaining returns the number of undecoded bytes.
func (d *Deserializer) Remaining() int {
	return d.r.Remaining()
}

func (d *Deserializer) readFixed(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.r.ReadExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBool reads one byte written by WriteBool. Any value other than 0 or 1
// is a decode mismatch.
func (d *Deserializer) ReadBool() (bool, error) {
	v, err := d.ReadUint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("%w: bool byte 0x%02x", ErrDecodeMismatch, v)
	}
	return v == 1, nil
}

// ReadUint8 reads one byte.
func (d *Deserializer) ReadUint8() (uint8, error) {
	buf, err := d.readFixed(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads a fixed-width little-endian uint16.
func (d *Deserializer) ReadUint16() (uint16, error) {
	buf, err := d.readFixed(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(buf), nil
}

// ReadUint32 reads a fixed-width little-endian uint32.
func (d *Deserializer) ReadUint32() (uint32, error) {
	buf, err := d.readFixed(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf), nil
}

// ReadUint64 reads a fixed-width little-endian uint64.
func (d *Deserializer) ReadUint64() (uint64, error) {
	buf, err := d.readFixed(8)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint64(buf), nil
}

// ReadInt8 reads one byte.
func (d *Deserializer) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

// ReadInt16 reads a fixed-width little-endian int16.
func (d *Deserializer) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// ReadInt32 reads a fixed-width little-endian int32.
func (d *Deserializer) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads a fixed-width little-endian int64.
func (d *Deserializer) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE 754 float32.
func (d *Deserializer) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE 754 float64.
func (d *Deserializer) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

// readLength reads a uvarint and validates it against the remaining bytes
// when each counted unit occupies at least minUnit bytes. Validation happens
// before any allocation sized by the decoded value.
func (d *Deserializer) readLength(minUnit int) (int, error) {
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		if err == io.EOF {
			return 0, payload.ErrInsufficientData
		}
		return 0, err
	}
	if minUnit > 0 && n > uint64(d.r.Remaining()/minUnit) {
		return 0, fmt.Errorf("%w: declared length %d exceeds %d remaining bytes",
			ErrDecodeMismatch, n, d.r.Remaining())
	}
	return int(n), nil
}

// ReadBytes reads a length-prefixed byte string into a fresh slice.
func (d *Deserializer) ReadBytes() ([]byte, error) {
	n, err := d.readLength(1)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := d.r.ReadExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadString reads a length-prefixed byte string as a string.
func (d *Deserializer) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadSequenceLength reads the element count written by WriteSequenceLength.
// The caller must then perform exactly that many element reads. A count that
// cannot fit in the remaining bytes (at one byte per element minimum) is a
// decode mismatch.
func (d *Deserializer) ReadSequenceLength() (int, error) {
	return d.readLength(1)
}
