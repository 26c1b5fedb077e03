package shm

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/loomq/loom/internal/logging"
	"github.com/loomq/loom/internal/monitoring"
)

// Provider drives allocation policy and GC over one pluggable backend.
type Provider struct {
	backend Backend
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	space chan struct{} // closed and replaced whenever space is returned

	allocs atomic.Uint64
	gcRuns atomic.Uint64
	closed atomic.Bool
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger attaches a logger; the provider logs under the "shm" component.
func WithLogger(l *logging.Logger) ProviderOption {
	return func(p *Provider) { p.log = l.Component("shm") }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) ProviderOption {
	return func(p *Provider) { p.metrics = m }
}

// NewProvider wraps a backend. The backend's lifetime passes to the
// provider; Close closes it.
func NewProvider(backend Backend, opts ...ProviderOption) (*Provider, error) {
	if backend == nil {
		return nil, errors.New("shm: nil backend")
	}
	p := &Provider{
		backend: backend,
		log:     logging.NewNop(),
		space:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// allocPolicy is the composed allocation behavior: alloc-or-fail plus
// optional modifiers.
type allocPolicy struct {
	gcRetry  bool
	defrag   bool
	blocking bool
	timeout  time.Duration
}

// AllocOption adds a policy modifier to an allocation.
type AllocOption func(*allocPolicy)

// WithGCRetry runs a GC pass on allocation failure, then retries once.
func WithGCRetry() AllocOption {
	return func(pol *allocPolicy) { pol.gcRetry = true }
}

// WithDefrag coalesces free spans before failing.
func WithDefrag() AllocOption {
	return func(pol *allocPolicy) { pol.defrag = true }
}

// WithBlocking waits for space when the backend is full. A positive timeout
// bounds the wait, failing with ErrTimeout; zero or negative waits
// indefinitely.
func WithBlocking(timeout time.Duration) AllocOption {
	return func(pol *allocPolicy) {
		pol.blocking = true
		pol.timeout = timeout
	}
}

// Alloc allocates a buffer satisfying the layout under the composed policy.
// The returned buffer starts with one robust reference held by the caller.
func (p *Provider) Alloc(l Layout, opts ...AllocOption) (*Buffer, error) {
	if p.closed.Load() {
		return nil, ErrBackendClosed
	}
	var pol allocPolicy
	for _, opt := range opts {
		opt(&pol)
	}
	if err := l.Validate(); err != nil {
		p.metrics.RecordAllocFailure("unsupported_layout")
		return nil, err
	}

	reg, err := p.attempt(l, pol)
	if errors.Is(err, ErrOutOfMemory) && pol.blocking {
		reg, err = p.waitAlloc(l, pol)
	}
	if err != nil {
		p.metrics.RecordAllocFailure(failureReason(err))
		p.log.Debug("allocation failed",
			zap.Uint64("size", l.Size),
			zap.Uint64("align", l.Align),
			zap.Error(err))
		return nil, err
	}

	p.allocs.Add(1)
	p.metrics.RecordAlloc(reg.SpanLen())
	return &Buffer{prov: p, reg: reg}, nil
}

// attempt runs one allocation with the non-blocking modifiers applied.
func (p *Provider) attempt(l Layout, pol allocPolicy) (*Region, error) {
	reg, err := p.backend.Allocate(l)
	if !errors.Is(err, ErrOutOfMemory) {
		return reg, err
	}
	if pol.defrag {
		p.backend.Defrag()
		if reg, err = p.backend.Allocate(l); !errors.Is(err, ErrOutOfMemory) {
			return reg, err
		}
	}
	if pol.gcRetry {
		if reclaimed, _ := p.GC(); reclaimed > 0 {
			return p.backend.Allocate(l)
		}
	}
	return nil, err
}

// waitAlloc blocks until space admits the layout, the timeout expires, or
// the provider closes.
func (p *Provider) waitAlloc(l Layout, pol allocPolicy) (*Region, error) {
	var deadline <-chan time.Time
	if pol.timeout > 0 {
		timer := time.NewTimer(pol.timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		wait := p.spaceWait()

		// Re-check after arming the wait so a concurrent release between
		// the failed attempt and here is not missed.
		reg, err := p.attempt(l, allocPolicy{defrag: pol.defrag})
		if !errors.Is(err, ErrOutOfMemory) {
			return reg, err
		}
		select {
		case <-wait:
			if p.closed.Load() {
				return nil, ErrBackendClosed
			}
		case <-deadline:
			return nil, ErrTimeout
		}
	}
}

// GC scans for orphaned buffers, blocks whose recorded owner process no
// longer exists, and reclaims them. It returns the reclaimed byte total and
// orphan count.
func (p *Provider) GC() (uint64, int) {
	var reclaimed uint64
	var count int
	for _, reg := range p.backend.Regions() {
		if !p.backend.IsOrphan(reg) {
			continue
		}
		reclaimed += reg.SpanLen()
		count++
		p.log.Warn("reclaiming orphaned buffer",
			zap.Uint64("offset", reg.off),
			zap.Uint64("span", reg.SpanLen()),
			zap.Uint32("owner", reg.Owner()))
		p.backend.Deallocate(reg)
	}
	p.gcRuns.Add(1)
	p.metrics.RecordGC(count, reclaimed)
	if count > 0 {
		p.metrics.RecordFree(reclaimed)
		p.spaceEvent()
	}
	return reclaimed, count
}

// Available returns the backend's total free bytes.
func (p *Provider) Available() uint64 {
	return p.backend.Available()
}

// Stats is a snapshot of provider and backend state.
type Stats struct {
	BackendStats
	Allocations uint64
	GCPasses    uint64
}

// Stats returns a point-in-time snapshot.
func (p *Provider) Stats() Stats {
	return Stats{
		BackendStats: p.backend.Stats(),
		Allocations:  p.allocs.Load(),
		GCPasses:     p.gcRuns.Load(),
	}
}

// Close closes the backend and wakes blocked allocations. Outstanding
// buffers become invalid.
func (p *Provider) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.spaceEvent()
	return p.backend.Close()
}

// reclaim returns a fully released region to the backend.
func (p *Provider) reclaim(reg *Region) {
	span := reg.SpanLen()
	p.backend.Deallocate(reg)
	p.metrics.RecordFree(span)
	p.spaceEvent()
}

// spaceEvent wakes every blocked allocation for a re-check.
func (p *Provider) spaceEvent() {
	p.mu.Lock()
	close(p.space)
	p.space = make(chan struct{})
	p.mu.Unlock()
}

// spaceWait arms a wait on the next space event.
func (p *Provider) spaceWait() <-chan struct{} {
	p.mu.Lock()
	ch := p.space
	p.mu.Unlock()
	return ch
}

// failureReason maps a typed allocation failure to a metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrOutOfMemory):
		return "out_of_memory"
	case errors.Is(err, ErrUnsupportedLayout):
		return "unsupported_layout"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendClosed):
		return "closed"
	default:
		return "backend_error"
	}
}
