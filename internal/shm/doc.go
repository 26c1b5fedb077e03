// Package shm provides layout-aware shared-memory allocation with pluggable
// backends, composable allocation policies, and orphan-reclaiming GC.
//
// A Provider wraps one Backend. The POSIX backend maps a file-backed segment
// shareable across processes; the heap backend keeps the same block protocol
// on process memory for tests and single-process use.
//
// Robustness:
//   - Every allocated block carries a 64-byte header inside the segment
//     itself: magic, span geometry, owner PID, writer flag, and a reference
//     count updated with atomic operations valid across process boundaries.
//   - Because the refcount lives in the shared region, a process that dies
//     while holding references leaves evidence other processes can read. The
//     GC pass classifies a live block whose owner no longer exists as an
//     orphan and reclaims it.
//
// Allocation policies:
//   - Plain: allocate or fail with ErrOutOfMemory.
//   - WithDefrag: coalesce free spans before failing.
//   - WithGCRetry: run a GC pass, then retry once.
//   - WithBlocking: wait for space, optionally up to a timeout.
//
// Mutability:
//   - Buffers are written in place through Mutable views. At most one writer
//     view may be outstanding per buffer; the accessor API enforces this with
//     a flag in the shared header, not hardware protection.
//
// Example Usage:
//
//	backend, _ := shm.NewPosixBackend("", 4<<20)
//	provider, _ := shm.NewProvider(backend)
//	defer provider.Close()
//
//	layout, _ := shm.NewLayout(4096, 64)
//	buf, err := provider.Alloc(layout, shm.WithGCRetry())
//	if err != nil {
//		// typed: ErrOutOfMemory, ErrUnsupportedLayout, ErrTimeout, ...
//	}
//
//	view, _ := buf.Mutable()
//	copy(view.Bytes(), data)
//	view.End()
//
//	pl, _ := buf.AsPayload() // zero-copy bridge into payload.Bytes
//	defer pl.Release()
//	buf.Release()
package shm
