package payload

import "io"

// Reader is a sequential cursor over a Bytes container. The cursor advances
// monotonically across fragment boundaries; it never rewinds.
type Reader struct {
	b    *Bytes
	frag int
	off  int
	pos  int
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.b.Len() - r.pos
}

// Read copies up to len(p) bytes at the cursor into p, advancing the cursor.
// It returns the count copied; fewer than len(p) only at end of data. At the
// end of data it returns 0, io.EOF. Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) && r.b != nil && r.frag < len(r.b.frags) {
		frag := r.b.frags[r.frag].data
		c := copy(p[n:], frag[r.off:])
		n += c
		r.off += c
		r.pos += c
		if r.off == len(frag) {
			r.frag++
			r.off = 0
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadByte returns the next byte, advancing the cursor. It implements
// io.ByteReader for varint decoding.
func (r *Reader) ReadByte() (byte, error) {
	var one [1]byte
	if _, err := r.Read(one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}

// ReadExact fills p completely or fails with ErrInsufficientData, leaving
// the cursor past whatever prefix was consumed. Callers requiring an exact
// count (structured deserialization) use this instead of Read.
func (r *Reader) ReadExact(p []byte) error {
	n, err := r.Read(p)
	if err == io.EOF && len(p) > 0 {
		return ErrInsufficientData
	}
	if err != nil {
		return err
	}
	if n < len(p) {
		return ErrInsufficientData
	}
	return nil
}

// SliceIterator yields successive fragments of a Bytes container as
// read-only views. It is lazy, finite, and non-restartable.
type SliceIterator struct {
	b    *Bytes
	next int
}

// Next returns the next fragment view and true, or nil and false past the
// end. The returned slice must not be mutated and is valid only while the
// underlying container is alive.
func (it *SliceIterator) Next() ([]byte, bool) {
	if it.b == nil || it.next >= len(it.b.frags) {
		return nil, false
	}
	f := it.b.frags[it.next]
	it.next++
	return f.data, true
}
