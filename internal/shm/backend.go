package shm

// Backend is the pluggable allocator capability behind a Provider. Concrete
// backends own the memory area; the provider drives allocation policy and
// GC through this surface.
type Backend interface {
	// Allocate carves a region satisfying the layout, or fails with
	// ErrOutOfMemory / ErrUnsupportedLayout / ErrBackendClosed.
	Allocate(l Layout) (*Region, error)
	// Deallocate returns a region's span to the allocator.
	Deallocate(r *Region)
	// Available returns the total free bytes.
	Available() uint64
	// IsOrphan reports whether a live region's recorded owner process no
	// longer exists.
	IsOrphan(r *Region) bool
	// Regions lists the live regions for GC scans.
	Regions() []*Region
	// Defrag coalesces adjacent free spans.
	Defrag()
	// Stats returns a point-in-time snapshot of the memory area.
	Stats() BackendStats
	// Close releases the memory area. Outstanding regions become invalid.
	Close() error
}

// BackendStats is a snapshot of a backend's memory area.
type BackendStats struct {
	Total     uint64
	Available uint64
	Watermark uint64
	Live      int
}

// LivenessProbe reports whether the process with the given PID exists. The
// GC pass uses it to classify non-zero-refcount blocks with a dead owner as
// orphans. Tests inject probes to simulate abnormal termination.
type LivenessProbe func(pid uint32) bool
