// Package payload provides the zero-copy segmented byte container carried
// through the substrate: an ordered sequence of immutable, independently
// reference-counted fragments presenting one logical byte string.
package payload

import (
	"errors"
	"sync/atomic"
)

// ErrInsufficientData reports a read that required more bytes than remain.
var ErrInsufficientData = errors.New("payload: insufficient data")

// fragRef is one contiguous immutable fragment plus its shared refcount.
// The optional free function runs exactly once, when the last reference is
// released.
type fragRef struct {
	data []byte
	refs atomic.Int32
	free func([]byte)
}

func newFragRef(data []byte, free func([]byte)) *fragRef {
	f := &fragRef{data: data, free: free}
	f.refs.Store(1)
	return f
}

func (f *fragRef) retain() {
	f.refs.Add(1)
}

func (f *fragRef) release() {
	if f.refs.Add(-1) == 0 && f.free != nil {
		f.free(f.data)
		f.free = nil
	}
}

// Bytes is a segmented byte container. The concatenation of its fragments in
// order is the logical content; no fragment is empty. Fragment boundaries are
// an implementation detail and carry no semantic alignment guarantee.
//
// A Bytes value may share fragment storage with shallow clones. Content is
// immutable; Release drops this value's references and empties it.
type Bytes struct {
	frags []*fragRef
	size  int
}

// Empty returns a container with no fragments and zero length.
func Empty() *Bytes {
	return &Bytes{}
}

// FromBytes builds a container holding a private copy of data. The caller
// may reuse or free data immediately after the call returns.
func FromBytes(data []byte) *Bytes {
	if len(data) == 0 {
		return Empty()
	}
	own := make([]byte, len(data))
	copy(own, data)
	return &Bytes{frags: []*fragRef{newFragRef(own, nil)}, size: len(own)}
}

// Wrap builds a container over data without copying. Ownership of data
// transfers to the container: deleter runs exactly once, with data, when the
// last reference to the fragment is released. deleter may be nil when the
// storage needs no explicit teardown. Wrapping an empty slice runs the
// deleter immediately and returns an empty container.
func Wrap(data []byte, deleter func([]byte)) *Bytes {
	if len(data) == 0 {
		if deleter != nil {
			deleter(data)
		}
		return Empty()
	}
	return &Bytes{frags: []*fragRef{newFragRef(data, deleter)}, size: len(data)}
}

// FromFragments builds a container over the given fragments without copying.
// This is the inbound transport path: each non-empty slice becomes one
// fragment owned by the container. Empty slices are skipped.
func FromFragments(frags ...[]byte) *Bytes {
	b := &Bytes{}
	for _, f := range frags {
		if len(f) == 0 {
			continue
		}
		b.frags = append(b.frags, newFragRef(f, nil))
		b.size += len(f)
	}
	return b
}

// Len returns the logical content length in bytes.
func (b *Bytes) Len() int {
	if b == nil {
		return 0
	}
	return b.size
}

// IsEmpty reports whether the container holds no bytes.
func (b *Bytes) IsEmpty() bool {
	return b.Len() == 0
}

// NumFragments returns the number of fragments.
func (b *Bytes) NumFragments() int {
	if b == nil {
		return 0
	}
	return len(b.frags)
}

// ShallowClone returns a second container over the same storage. O(1) in
// content size: each fragment's refcount is incremented, no bytes are copied.
func (b *Bytes) ShallowClone() *Bytes {
	if b == nil || len(b.frags) == 0 {
		return Empty()
	}
	frags := make([]*fragRef, len(b.frags))
	for i, f := range b.frags {
		f.retain()
		frags[i] = f
	}
	return &Bytes{frags: frags, size: b.size}
}

// CloneRef implements the handle clone capability; clones are shallow.
func (b *Bytes) CloneRef() *Bytes {
	return b.ShallowClone()
}

// Release drops this container's fragment references and empties it.
// Fragment storage is torn down when the last sharing container releases.
// Releasing an already-released or empty container is a no-op.
func (b *Bytes) Release() {
	if b == nil {
		return
	}
	for _, f := range b.frags {
		f.release()
	}
	b.frags = nil
	b.size = 0
}

// Concat returns the logical content as one contiguous copy.
func (b *Bytes) Concat() []byte {
	out := make([]byte, 0, b.Len())
	if b != nil {
		for _, f := range b.frags {
			out = append(out, f.data...)
		}
	}
	return out
}

// Reader returns a sequential reader positioned at the start of the content.
func (b *Bytes) Reader() *Reader {
	return &Reader{b: b}
}

// Slices returns an iterator over the fragments as read-only views. The
// iterator is finite and non-restartable; obtain a fresh one to re-scan.
func (b *Bytes) Slices() *SliceIterator {
	return &SliceIterator{b: b}
}
