//go:build unix

package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// PosixBackend maps a file-backed shared-memory segment and runs the arena
// protocol on it. Segments live under /dev/shm where available so the
// mapping is anonymous-memory fast, and are shareable by name with other
// processes.
type PosixBackend struct {
	mu     sync.Mutex
	a      *arena
	alive  LivenessProbe
	file   *os.File
	path   string
	dir    string
	unlink bool
	closed bool
}

// PosixOption configures a PosixBackend.
type PosixOption func(*PosixBackend)

// WithPosixDir places segment files under dir instead of the platform
// default.
func WithPosixDir(dir string) PosixOption {
	return func(b *PosixBackend) { b.dir = dir }
}

// WithPosixLivenessProbe overrides the process-existence probe.
func WithPosixLivenessProbe(p LivenessProbe) PosixOption {
	return func(b *PosixBackend) { b.alive = p }
}

// segmentDir returns the directory backing named segments.
func segmentDir() string {
	if runtime.GOOS == "linux" {
		if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
			return "/dev/shm"
		}
	}
	return os.TempDir()
}

// NewPosixBackend creates a new segment of the given total size. An empty
// name generates one; the segment file is created exclusively and unlinked
// on Close.
func NewPosixBackend(name string, size uint64, opts ...PosixOption) (*PosixBackend, error) {
	if size <= segmentHeaderSize+blockHeaderSize {
		return nil, ErrUnsupportedLayout
	}
	if name == "" {
		name = "loom-" + uuid.NewString()
	}

	b := &PosixBackend{alive: processAlive}
	for _, opt := range opts {
		opt(b)
	}
	dir := b.dir
	if dir == "" {
		dir = segmentDir()
	}
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create segment file %s: %w", path, err)
	}
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("shm: resize segment file: %w", err)
	}
	mem, err := unix.Mmap(int(file.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("shm: mmap segment: %w", err)
	}

	b.a = newArena(mem, uint32(os.Getpid()))
	b.file = file
	b.path = path
	b.unlink = true
	return b, nil
}

// AttachPosixBackend maps an existing segment by name. The live-block view
// is rebuilt by scanning in-segment headers up to the recorded watermark;
// the scan is best-effort and validated per header, which is sufficient for
// GC and inspection of a segment whose creator died.
func AttachPosixBackend(name string, opts ...PosixOption) (*PosixBackend, error) {
	b := &PosixBackend{alive: processAlive}
	for _, opt := range opts {
		opt(b)
	}
	dir := b.dir
	if dir == "" {
		dir = segmentDir()
	}
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open segment file %s: %w", path, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: stat segment file: %w", err)
	}
	mem, err := unix.Mmap(int(file.Fd()), 0, int(fi.Size()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: mmap segment: %w", err)
	}
	if err := validateSegment(mem); err != nil {
		unix.Munmap(mem)
		file.Close()
		return nil, err
	}

	b.a = rebuildArena(mem, uint32(os.Getpid()))
	b.file = file
	b.path = path
	return b, nil
}

// rebuildArena reconstructs the arena bookkeeping from in-segment headers.
func rebuildArena(mem []byte, pid uint32) *arena {
	a := &arena{mem: mem, pid: pid, live: make(map[uint64]*Region)}
	hdr := (*segmentHeader)(unsafe.Pointer(&mem[0]))
	total := uint64(len(mem))
	watermark := atomic.LoadUint64(&hdr.watermark)
	if watermark < segmentHeaderSize || watermark > total {
		watermark = total
	}

	// Collect live spans by scanning block-aligned offsets for validated
	// headers, then derive the free list as the complement.
	type liveSpan struct{ off, len, payload uint64 }
	var spans []liveSpan
	for off := uint64(segmentHeaderSize); off+blockHeaderSize <= watermark; off += blockAlign {
		bh := (*blockHeader)(unsafe.Pointer(&mem[off]))
		if bh.magic != blockMagic || atomic.LoadUint32(&bh.state) != blockLive {
			continue
		}
		payloadOff := off + blockHeaderSize
		if bh.spanOff > off || bh.spanOff+bh.spanLen > total ||
			payloadOff+bh.size > bh.spanOff+bh.spanLen {
			continue
		}
		spans = append(spans, liveSpan{off: bh.spanOff, len: bh.spanLen, payload: payloadOff})
		a.live[payloadOff] = &Region{
			Data: mem[payloadOff : payloadOff+bh.size : payloadOff+bh.size],
			hdr:  bh,
			off:  payloadOff,
		}
		a.used += bh.spanLen
		// Resume at the first block-aligned offset past this span.
		off = alignUp(bh.spanOff+bh.spanLen, blockAlign) - blockAlign
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].off < spans[j].off })

	cursor := uint64(segmentHeaderSize)
	for _, sp := range spans {
		if sp.off > cursor {
			a.free = append(a.free, span{off: cursor, len: sp.off - cursor})
		}
		cursor = sp.off + sp.len
	}
	if cursor < total {
		a.free = append(a.free, span{off: cursor, len: total - cursor})
	}
	return a
}

// Name returns the segment file name.
func (b *PosixBackend) Name() string {
	return filepath.Base(b.path)
}

// Allocate implements Backend.
func (b *PosixBackend) Allocate(l Layout) (*Region, error) {
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
func (b *PosixBackend) Deallocate(r *Region) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.a.dealloc(r)
}

// Available implements Backend.
func (b *PosixBackend) Available() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.a.available()
}

// IsOrphan implements Backend.
func (b *PosixBackend) IsOrphan(r *Region) bool {
	return r.hdr.liveState() == blockLive && !b.alive(r.hdr.ownerPID())
}

// Regions implements Backend.
func (b *PosixBackend) Regions() []*Region {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.a.regions()
}

// Defrag implements Backend.
func (b *PosixBackend) Defrag() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.a.defrag()
	}
}

// Stats implements Backend.
func (b *PosixBackend) Stats() BackendStats {
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

// Close unmaps the segment and, for the creating backend, unlinks the file.
func (b *PosixBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	if err := unix.Munmap(b.a.mem); err != nil {
		firstErr = fmt.Errorf("shm: munmap: %w", err)
	}
	b.a = nil
	if err := b.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shm: close segment file: %w", err)
	}
	if b.unlink {
		if err := os.Remove(b.path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shm: unlink segment file: %w", err)
		}
	}
	return firstErr
}
