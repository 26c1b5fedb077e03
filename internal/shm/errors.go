package shm

import "errors"

var (
	// ErrOutOfMemory reports that no free span can satisfy the layout.
	ErrOutOfMemory = errors.New("shm: out of memory")
	// ErrUnsupportedLayout reports an invalid or unsatisfiable layout.
	ErrUnsupportedLayout = errors.New("shm: unsupported layout")
	// ErrBackendClosed reports use of a closed backend.
	ErrBackendClosed = errors.New("shm: backend closed")
	// ErrTimeout reports a blocking allocation that expired before space
	// became available.
	ErrTimeout = errors.New("shm: allocation timed out")
	// ErrWriterActive reports a second mutable view on a buffer.
	ErrWriterActive = errors.New("shm: mutable view already outstanding")
	// ErrBufferReleased reports access through a released buffer handle.
	ErrBufferReleased = errors.New("shm: buffer released")
	// ErrBadSegment reports a mapped segment whose header fails validation.
	ErrBadSegment = errors.New("shm: bad segment")
)
