package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Allocator metrics
	AllocationsTotal   prometheus.Counter
	AllocationFailures *prometheus.CounterVec
	AllocatedBytes     prometheus.Gauge
	AllocationSize     prometheus.Histogram

	// GC metrics
	GCPasses           prometheus.Counter
	GCReclaimedBytes   prometheus.Counter
	GCOrphansReclaimed prometheus.Counter

	// Channel metrics
	ChannelDropped *prometheus.CounterVec
	ChannelEvicted *prometheus.CounterVec
	ChannelDepth   *prometheus.GaugeVec
}

// NewMetrics creates a new metrics collector. A nil registerer selects the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Allocator metrics
		AllocationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loom_shm_allocations_total",
				Help: "Total number of successful shared-memory allocations",
			},
		),
		AllocationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_shm_allocation_failures_total",
				Help: "Total number of failed allocations by reason",
			},
			[]string{"reason"},
		),
		AllocatedBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "loom_shm_allocated_bytes",
				Help: "Bytes currently allocated from shared memory",
			},
		),
		AllocationSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loom_shm_allocation_size_bytes",
				Help:    "Requested allocation size in bytes",
				Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576},
			},
		),

		// GC metrics
		GCPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loom_shm_gc_passes_total",
				Help: "Total number of GC passes over the segment",
			},
		),
		GCReclaimedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loom_shm_gc_reclaimed_bytes_total",
				Help: "Total bytes reclaimed by GC passes",
			},
		),
		GCOrphansReclaimed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "loom_shm_gc_orphans_reclaimed_total",
				Help: "Total orphaned buffers reclaimed by GC passes",
			},
		),

		// Channel metrics
		ChannelDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_channel_dropped_total",
				Help: "Total elements dropped by full FIFO channels",
			},
			[]string{"channel"},
		),
		ChannelEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_channel_evicted_total",
				Help: "Total elements evicted by full ring channels",
			},
			[]string{"channel"},
		),
		ChannelDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loom_channel_depth",
				Help: "Current number of queued elements per channel",
			},
			[]string{"channel"},
		),
	}
}

// RecordAlloc records a successful allocation of the given size.
func (m *Metrics) RecordAlloc(size uint64) {
	if m == nil {
		return
	}
	m.AllocationsTotal.Inc()
	m.AllocationSize.Observe(float64(size))
	m.AllocatedBytes.Add(float64(size))
}

// RecordFree records the return of size bytes to the allocator.
func (m *Metrics) RecordFree(size uint64) {
	if m == nil {
		return
	}
	m.AllocatedBytes.Sub(float64(size))
}

// RecordAllocFailure records a failed allocation by reason.
func (m *Metrics) RecordAllocFailure(reason string) {
	if m == nil {
		return
	}
	m.AllocationFailures.WithLabelValues(reason).Inc()
}

// RecordGC records one GC pass reclaiming the given orphan count and bytes.
func (m *Metrics) RecordGC(orphans int, reclaimed uint64) {
	if m == nil {
		return
	}
	m.GCPasses.Inc()
	m.GCOrphansReclaimed.Add(float64(orphans))
	m.GCReclaimedBytes.Add(float64(reclaimed))
}

// RecordDrop records a dropped element on the named channel.
func (m *Metrics) RecordDrop(channel string) {
	if m == nil {
		return
	}
	m.ChannelDropped.WithLabelValues(channel).Inc()
}

// RecordEvict records an evicted element on the named channel.
func (m *Metrics) RecordEvict(channel string) {
	if m == nil {
		return
	}
	m.ChannelEvicted.WithLabelValues(channel).Inc()
}

// SetDepth records the current queue depth of the named channel.
func (m *Metrics) SetDepth(channel string, depth int) {
	if m == nil {
		return
	}
	m.ChannelDepth.WithLabelValues(channel).Set(float64(depth))
}
