package shm

import (
	"sync/atomic"

	"github.com/loomq/loom/internal/payload"
)

// Buffer is a handle over one allocated shared-memory region. The reference
// count lives in the region's in-segment header, so holders in other
// processes keep the block alive and a crashed holder leaves a detectable
// orphan. Each Buffer handle contributes one reference; Release is
// idempotent per handle.
type Buffer struct {
	prov     *Provider
	reg      *Region
	released atomic.Bool
}

// Size returns the payload size in bytes.
func (b *Buffer) Size() uint64 {
	return b.reg.Size()
}

// Bytes returns the payload as a read view. The slice aliases shared
// memory; treat it as read-only and do not retain it past Release.
func (b *Buffer) Bytes() []byte {
	if b.released.Load() {
		return nil
	}
	return b.reg.Data
}

// RefCount returns the current robust reference count. Diagnostics only.
func (b *Buffer) RefCount() int64 {
	return b.reg.hdr.refCount()
}

// Retain increments the robust refcount and returns a new independent
// handle over the same region.
func (b *Buffer) Retain() (*Buffer, error) {
	if b.released.Load() {
		return nil, ErrBufferReleased
	}
	b.reg.hdr.addRef()
	return &Buffer{prov: b.prov, reg: b.reg}, nil
}

// Release drops this handle's reference. When the robust refcount reaches
// zero the block's span returns to the backend. Releasing twice is a no-op.
func (b *Buffer) Release() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	if b.reg.hdr.dropRef() == 0 {
		b.prov.reclaim(b.reg)
	}
}

// Mutable takes the exclusive writer view of the buffer. At most one writer
// view may be outstanding; a second request fails with ErrWriterActive. The
// exclusivity flag lives in the shared header, so the discipline holds
// across processes sharing the segment.
func (b *Buffer) Mutable() (*MutView, error) {
	if b.released.Load() {
		return nil, ErrBufferReleased
	}
	if !b.reg.hdr.acquireWriter() {
		return nil, ErrWriterActive
	}
	return &MutView{buf: b}, nil
}

// AsPayload bridges the buffer into the segmented byte container without
// copying. The payload holds its own reference; releasing the payload's
// last clone drops it. The buffer handle remains independently owned.
func (b *Buffer) AsPayload() (*payload.Bytes, error) {
	ref, err := b.Retain()
	if err != nil {
		return nil, err
	}
	return payload.Wrap(ref.reg.Data, func([]byte) { ref.Release() }), nil
}

// MutView is the exclusive writable view of a buffer.
type MutView struct {
	buf   *Buffer
	ended atomic.Bool
}

// Bytes returns the writable payload slice.
func (v *MutView) Bytes() []byte {
	if v.ended.Load() {
		return nil
	}
	return v.buf.reg.Data
}

// End releases writer exclusivity. Ending twice is a no-op.
func (v *MutView) End() {
	if v.ended.CompareAndSwap(false, true) {
		v.buf.reg.hdr.releaseWriter()
	}
}
