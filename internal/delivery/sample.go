// Package delivery defines the boundary between the routing layer and
// consumers: the sample value, the opaque encoding descriptor, and the sink
// duality choosing between immediate callback invocation and enqueueing into
// a bounded channel.
package delivery

import (
	"time"

	"github.com/loomq/loom/internal/channel"
	"github.com/loomq/loom/internal/config"
	"github.com/loomq/loom/internal/monitoring"
	"github.com/loomq/loom/internal/payload"
)

// Sample is one delivered value: a key, the payload, an optional
// attachment, and the encoding descriptor. Payload and attachment follow
// the shared-ownership rules of payload.Bytes; a sink that retains a sample
// past the delivery call must clone them.
type Sample struct {
	Key        string
	Payload    *payload.Bytes
	Attachment *payload.Bytes
	Encoding   Encoding
	Timestamp  time.Time
}

// Clone returns a sample sharing the payload and attachment storage via
// shallow clones. Use it to hand a sample across an execution-context
// boundary.
func (s Sample) Clone() Sample {
	c := s
	c.Payload = s.Payload.ShallowClone()
	if s.Attachment != nil {
		c.Attachment = s.Attachment.ShallowClone()
	}
	return c
}

// Release drops the sample's payload and attachment references.
func (s *Sample) Release() {
	s.Payload.Release()
	s.Attachment.Release()
}

// Sink consumes delivered samples. The producer always calls the one
// uniform Deliver operation; the concrete form is chosen once at
// subscription time.
type Sink interface {
	Deliver(Sample)
}

// callbackSink invokes a function immediately on the producer's execution
// context. The callback must not retain the sample's views past its return;
// it clones what it keeps.
type callbackSink struct {
	fn func(Sample)
}

// Callback builds a sink invoking fn inline for every sample.
func Callback(fn func(Sample)) Sink {
	return callbackSink{fn: fn}
}

func (c callbackSink) Deliver(s Sample) {
	c.fn(s)
}

// queueSink enqueues into a bounded channel handler. The sample is cloned
// into the queue so its lifetime detaches from the producer's call frame;
// full-queue behavior is the handler's drop or evict policy.
type queueSink struct {
	h *channel.Handler[Sample]
}

// Queue builds a sink feeding the given handler. Handlers carrying samples
// should be built with NewSampleQueue so discarded samples release their
// payload references.
func Queue(h *channel.Handler[Sample]) Sink {
	return queueSink{h: h}
}

func (q queueSink) Deliver(s Sample) {
	q.h.Push(s.Clone())
}

// NewSampleQueue builds a bounded sample handler whose discard path releases
// whatever the queue throws away, so shared-memory payload references do not
// leak through drops, evictions, or pushes after close. A non-positive
// capacity selects the configured default.
func NewSampleQueue(capacity int, policy channel.Policy, opts ...channel.Option[Sample]) (*channel.Handler[Sample], error) {
	if capacity <= 0 {
		capacity = config.LoadOrDefault().Channel.Capacity
	}
	opts = append(opts, channel.WithDiscardHook[Sample](func(s Sample) { s.Release() }))
	if policy == channel.PolicyRing {
		return channel.NewRing[Sample](capacity, opts...)
	}
	return channel.NewFifo[Sample](capacity, opts...)
}

// QueueMetrics returns channel options publishing the named queue's drops,
// evictions, and depth to the collector. Pass them to NewSampleQueue.
func QueueMetrics(m *monitoring.Metrics, name string) []channel.Option[Sample] {
	return []channel.Option[Sample]{
		channel.WithDropHook[Sample](func() { m.RecordDrop(name) }),
		channel.WithEvictHook[Sample](func() { m.RecordEvict(name) }),
		channel.WithDepthHook[Sample](func(depth int) { m.SetDepth(name, depth) }),
	}
}
