package shm

import (
	"os"
	"sync"
	"sync/atomic"
)

// HeapBackend keeps the full block protocol on process heap memory. It
// backs tests and single-process deployments where cross-process sharing is
// not needed; the header discipline is identical to the POSIX backend.
type HeapBackend struct {
	mu     sync.Mutex
	a      *arena
	alive  LivenessProbe
	closed bool
}

// HeapOption configures a HeapBackend.
type HeapOption func(*HeapBackend)

// WithLivenessProbe overrides the process-existence probe used for orphan
// classification.
func WithLivenessProbe(p LivenessProbe) HeapOption {
	return func(b *HeapBackend) { b.alive = p }
}

// NewHeapBackend builds a heap-backed area of the given total size.
func NewHeapBackend(size uint64, opts ...HeapOption) (*HeapBackend, error) {
	if size <= segmentHeaderSize+blockHeaderSize {
		return nil, ErrUnsupportedLayout
	}
	b := &HeapBackend{
		a:     newArena(make([]byte, size), uint32(os.Getpid())),
		alive: processAlive,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Allocate implements Backend.
func (b *HeapBackend) Allocate(l Layout) (*Region, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBackendClosed
	}
	return b.a.alloc(l)
}

// Deallocate implements Backend.
func (b *HeapBackend) Deallocate(r *Region) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.a.dealloc(r)
}

// Available implements Backend.
func (b *HeapBackend) Available() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.a.available()
}

// IsOrphan implements Backend: a live region whose owner process is gone.
func (b *HeapBackend) IsOrphan(r *Region) bool {
	return r.hdr.liveState() == blockLive && !b.alive(r.hdr.ownerPID())
}

// Regions implements Backend.
func (b *HeapBackend) Regions() []*Region {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.a.regions()
}

// Defrag implements Backend.
func (b *HeapBackend) Defrag() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.a.defrag()
	}
}

// Stats implements Backend.
func (b *HeapBackend) Stats() BackendStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return BackendStats{}
	}
	return BackendStats{
		Total:     uint64(len(b.a.mem)),
		Available: b.a.available(),
		Watermark: atomic.LoadUint64(&b.a.header().watermark),
		Live:      len(b.a.live),
	}
}

// Close implements Backend.
func (b *HeapBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.a = nil
	return nil
}
