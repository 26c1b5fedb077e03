package shm

import (
	"fmt"
	"sort"
	"sync/atomic"
	"unsafe"
)

// Shared-memory layout constants.
const (
	// Magic words identifying a segment and a block header.
	segmentMagic = uint32(0x4D4F4F4C) // "LOOM"
	blockMagic   = uint32(0x004B4C42) // "BLK\0"

	// Current segment protocol version.
	segmentVersion = uint32(1)

	// Segment header size (aligned to 128 bytes).
	segmentHeaderSize = 128

	// Block header size and block alignment (one cache line).
	blockHeaderSize = 64
	blockAlign      = 64

	// Block states.
	blockFree = uint32(0)
	blockLive = uint32(1)
)

// segmentHeader sits at offset 0 of every segment. All fields besides the
// magic are accessed atomically; the watermark records the high-water end
// offset ever handed out, bounding GC scans from other processes.
type segmentHeader struct {
	magic     uint32
	version   uint32
	totalSize uint64
	watermark uint64
	creator   uint32
	_         uint32
	_         [96]byte
}

// blockHeader precedes every allocated region inside the segment. The
// reference count and writer flag live here, in shared memory, so they
// survive the death of any single process.
type blockHeader struct {
	magic   uint32
	state   uint32 // blockFree or blockLive
	spanOff uint64 // start of the span this block occupies
	spanLen uint64 // full span length including header and padding
	size    uint64 // payload size requested by the allocation
	owner   uint32 // PID of the allocating process
	writer  uint32 // mutable view flag, 0 or 1
	refs    int64  // robust refcount
	_       [16]byte
}

func (h *blockHeader) refCount() int64   { return atomic.LoadInt64(&h.refs) }
func (h *blockHeader) addRef() int64     { return atomic.AddInt64(&h.refs, 1) }
func (h *blockHeader) dropRef() int64    { return atomic.AddInt64(&h.refs, -1) }
func (h *blockHeader) ownerPID() uint32  { return atomic.LoadUint32(&h.owner) }
func (h *blockHeader) liveState() uint32 { return atomic.LoadUint32(&h.state) }

func (h *blockHeader) acquireWriter() bool {
	return atomic.CompareAndSwapUint32(&h.writer, 0, 1)
}

func (h *blockHeader) releaseWriter() {
	atomic.StoreUint32(&h.writer, 0)
}

// span is a free extent inside the arena.
type span struct {
	off uint64
	len uint64
}

// arena allocates blocks out of one contiguous memory area, heap or mapped.
// The free list is process-local bookkeeping; everything a foreign process
// needs for orphan detection lives in the in-area headers. arena is not
// goroutine-safe; backends serialize access.
type arena struct {
	mem  []byte
	pid  uint32
	free []span
	used uint64
	live map[uint64]*Region // keyed by payload offset
}

func newArena(mem []byte, pid uint32) *arena {
	a := &arena{mem: mem, pid: pid, live: make(map[uint64]*Region)}
	a.free = []span{{off: segmentHeaderSize, len: uint64(len(mem)) - segmentHeaderSize}}
	hdr := a.header()
	hdr.magic = segmentMagic
	hdr.version = segmentVersion
	atomic.StoreUint64(&hdr.totalSize, uint64(len(mem)))
	atomic.StoreUint64(&hdr.watermark, segmentHeaderSize)
	atomic.StoreUint32(&hdr.creator, pid)
	return a
}

func (a *arena) header() *segmentHeader {
	return (*segmentHeader)(unsafe.Pointer(&a.mem[0]))
}

func (a *arena) blockAt(payloadOff uint64) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(&a.mem[payloadOff-blockHeaderSize]))
}

// alloc carves a block for the layout out of the first fitting free span.
func (a *arena) alloc(l Layout) (*Region, error) {
	align := l.Align
	if align < blockAlign {
		align = blockAlign
	}
	for i, sp := range a.free {
		payloadOff := alignUp(sp.off+blockHeaderSize, align)
		need := payloadOff + l.Size - sp.off
		if need > sp.len {
			continue
		}
		if rest := sp.len - need; rest > 0 {
			a.free[i] = span{off: sp.off + need, len: rest}
		} else {
			a.free = append(a.free[:i], a.free[i+1:]...)
		}

		hdr := a.blockAt(payloadOff)
		*hdr = blockHeader{
			magic:   blockMagic,
			spanOff: sp.off,
			spanLen: need,
			size:    l.Size,
			owner:   a.pid,
			refs:    1,
		}
		atomic.StoreUint32(&hdr.state, blockLive)

		a.used += need
		if end := sp.off + need; end > atomic.LoadUint64(&a.header().watermark) {
			atomic.StoreUint64(&a.header().watermark, end)
		}

		reg := &Region{
			Data: a.mem[payloadOff : payloadOff+l.Size : payloadOff+l.Size],
			hdr:  hdr,
			off:  payloadOff,
		}
		a.live[payloadOff] = reg
		return reg, nil
	}
	return nil, ErrOutOfMemory
}

// dealloc returns a block's span to the free list. Spans are not coalesced
// here; defrag merges adjacent spans on demand.
func (a *arena) dealloc(r *Region) {
	hdr := r.hdr
	if atomic.LoadUint32(&hdr.state) != blockLive {
		return
	}
	atomic.StoreUint32(&hdr.state, blockFree)
	hdr.magic = 0
	a.free = append(a.free, span{off: hdr.spanOff, len: hdr.spanLen})
	a.used -= hdr.spanLen
	delete(a.live, r.off)
}

// defrag sorts the free list by offset and merges adjacent spans.
func (a *arena) defrag() {
	if len(a.free) < 2 {
		return
	}
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].off < a.free[j].off })
	merged := a.free[:1]
	for _, sp := range a.free[1:] {
		last := &merged[len(merged)-1]
		if last.off+last.len == sp.off {
			last.len += sp.len
		} else {
			merged = append(merged, sp)
		}
	}
	a.free = merged
}

// available returns the total free bytes in the arena.
func (a *arena) available() uint64 {
	var total uint64
	for _, sp := range a.free {
		total += sp.len
	}
	return total
}

// regions returns the live regions in offset order.
func (a *arena) regions() []*Region {
	out := make([]*Region, 0, len(a.live))
	for _, r := range a.live {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].off < out[j].off })
	return out
}

// validateSegment checks the header of a foreign mapping before use.
func validateSegment(mem []byte) error {
	if len(mem) < segmentHeaderSize {
		return fmt.Errorf("%w: mapping smaller than header", ErrBadSegment)
	}
	hdr := (*segmentHeader)(unsafe.Pointer(&mem[0]))
	if hdr.magic != segmentMagic {
		return fmt.Errorf("%w: bad magic 0x%08x", ErrBadSegment, hdr.magic)
	}
	if hdr.version != segmentVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrBadSegment, hdr.version, segmentVersion)
	}
	if atomic.LoadUint64(&hdr.totalSize) != uint64(len(mem)) {
		return fmt.Errorf("%w: header size %d does not match mapping %d",
			ErrBadSegment, hdr.totalSize, len(mem))
	}
	return nil
}

// Region is one allocated block: the payload slice plus its in-segment
// header. Regions are handed out by backends and wrapped by Buffer; the
// payload slice aliases segment memory and dies with the block.
type Region struct {
	Data []byte
	hdr  *blockHeader
	off  uint64
}

// Size returns the payload size in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.Data))
}

// SpanLen returns the full span length the block occupies, header and
// alignment padding included.
func (r *Region) SpanLen() uint64 {
	return r.hdr.spanLen
}

// Owner returns the PID recorded at allocation.
func (r *Region) Owner() uint32 {
	return r.hdr.ownerPID()
}
