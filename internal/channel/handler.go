// Package channel provides bounded queues delivering produced values to
// consumers without ever stalling the producer. A full FIFO queue drops the
// incoming element; a full ring queue evicts the oldest. The loss is the
// documented price of backpressure-free, bounded-memory delivery.
package channel

import (
	"errors"
	"sync"
)

var (
	// ErrNoData reports an empty but open channel on a non-blocking receive.
	ErrNoData = errors.New("channel: no data")
	// ErrDisconnected reports a closed channel with nothing left to drain.
	ErrDisconnected = errors.New("channel: disconnected")
)

// Policy selects the full-queue behavior.
type Policy int

const (
	// PolicyFifo drops the incoming element when the queue is full.
	PolicyFifo Policy = iota
	// PolicyRing evicts the oldest queued element to admit the new one.
	PolicyRing
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyFifo:
		return "fifo"
	case PolicyRing:
		return "ring"
	default:
		return "unknown"
	}
}

// Handler is a bounded queue of capacity N plus a terminal closed flag.
// Push never blocks; Recv blocks until data arrives or the channel closes;
// TryRecv never blocks. Safe for concurrent producers and consumers.
type Handler[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int
	count  int
	policy Policy
	closed bool

	onDrop    func()
	onEvict   func()
	onDiscard func(T)
	onDepth   func(int)
}

// Option configures a Handler.
type Option[T any] func(*Handler[T])

// WithDropHook observes elements dropped by a full FIFO queue.
func WithDropHook[T any](fn func()) Option[T] {
	return func(h *Handler[T]) { h.onDrop = fn }
}

// WithEvictHook observes elements evicted by a full ring queue.
func WithEvictHook[T any](fn func()) Option[T] {
	return func(h *Handler[T]) { h.onEvict = fn }
}

// WithDiscardHook receives every element the queue throws away: dropped by
// a full FIFO, evicted by a full ring, or pushed after close. Resource-bearing
// element types use it to release references the queue would otherwise leak.
func WithDiscardHook[T any](fn func(T)) Option[T] {
	return func(h *Handler[T]) { h.onDiscard = fn }
}

// WithDepthHook observes the queue depth after every enqueue and dequeue.
func WithDepthHook[T any](fn func(int)) Option[T] {
	return func(h *Handler[T]) { h.onDepth = fn }
}

// NewFifo builds a FIFO handler of the given capacity.
func NewFifo[T any](capacity int, opts ...Option[T]) (*Handler[T], error) {
	return newHandler(capacity, PolicyFifo, opts...)
}

// NewRing builds a ring handler of the given capacity.
func NewRing[T any](capacity int, opts ...Option[T]) (*Handler[T], error) {
	return newHandler(capacity, PolicyRing, opts...)
}

func newHandler[T any](capacity int, policy Policy, opts ...Option[T]) (*Handler[T], error) {
	if capacity <= 0 {
		return nil, errors.New("channel: capacity must be positive")
	}
	h := &Handler[T]{
		buf:    make([]T, capacity),
		policy: policy,
	}
	h.cond = sync.NewCond(&h.mu)
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Policy returns the full-queue policy.
func (h *Handler[T]) Policy() Policy {
	return h.policy
}

// Cap returns the queue capacity.
func (h *Handler[T]) Cap() int {
	return len(h.buf)
}

// Len returns the current queue depth.
func (h *Handler[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Push offers a value to the queue. On a closed channel the producer sees a
// silent no-op, but the element still counts as discarded and reaches the
// discard hook. On a full queue the FIFO policy drops v and the ring policy
// evicts the oldest queued element to admit v. Push never blocks.
func (h *Handler[T]) Push(v T) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		if h.onDiscard != nil {
			h.onDiscard(v)
		}
		return
	}
	var dropped, evicted bool
	var discarded T
	if h.count == len(h.buf) {
		if h.policy == PolicyFifo {
			dropped = true
			discarded = v
		} else {
			// Ring: evict the head to admit v.
			var zero T
			evicted = true
			discarded = h.buf[h.head]
			h.buf[h.head] = zero
			h.head = (h.head + 1) % len(h.buf)
			h.count--
		}
	}
	if !dropped {
		h.buf[(h.head+h.count)%len(h.buf)] = v
		h.count++
	}
	depth := h.count
	h.mu.Unlock()

	if !dropped {
		h.cond.Signal()
		if h.onDepth != nil {
			h.onDepth(depth)
		}
	}
	if dropped && h.onDrop != nil {
		h.onDrop()
	}
	if evicted && h.onEvict != nil {
		h.onEvict()
	}
	if (dropped || evicted) && h.onDiscard != nil {
		h.onDiscard(discarded)
	}
}

// Recv blocks until an element is available or the channel is closed with
// an empty queue, in which case it fails with ErrDisconnected. There is no
// implicit cancellation; Recv unblocks only on data arrival or close.
func (h *Handler[T]) Recv() (T, error) {
	h.mu.Lock()
	for h.count == 0 && !h.closed {
		h.cond.Wait()
	}
	v, err := h.popLocked()
	depth := h.count
	h.mu.Unlock()
	if err == nil && h.onDepth != nil {
		h.onDepth(depth)
	}
	return v, err
}

// TryRecv returns immediately: an element if one is queued, ErrNoData on an
// empty open channel, ErrDisconnected on an empty closed one.
func (h *Handler[T]) TryRecv() (T, error) {
	h.mu.Lock()
	if h.count == 0 && !h.closed {
		h.mu.Unlock()
		var zero T
		return zero, ErrNoData
	}
	v, err := h.popLocked()
	depth := h.count
	h.mu.Unlock()
	if err == nil && h.onDepth != nil {
		h.onDepth(depth)
	}
	return v, err
}

func (h *Handler[T]) popLocked() (T, error) {
	var zero T
	if h.count == 0 {
		return zero, ErrDisconnected
	}
	v := h.buf[h.head]
	h.buf[h.head] = zero
	h.head = (h.head + 1) % len(h.buf)
	h.count--
	return v, nil
}

// Close marks the channel closed. Closing is terminal: later pushes are
// no-ops, queued elements remain drainable, and consumers observe
// disconnection once the queue empties. Closing twice is a no-op.
func (h *Handler[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (h *Handler[T]) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
