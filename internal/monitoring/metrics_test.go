package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAllocAndFree(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAlloc(1024)
	m.RecordAlloc(2048)
	m.RecordFree(1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AllocationsTotal))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.AllocatedBytes))
}

func TestRecordAllocFailureByReason(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAllocFailure("out_of_memory")
	m.RecordAllocFailure("out_of_memory")
	m.RecordAllocFailure("timeout")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AllocationFailures.WithLabelValues("out_of_memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AllocationFailures.WithLabelValues("timeout")))
}

func TestRecordGC(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordGC(3, 4096)
	m.RecordGC(0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GCPasses))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GCOrphansReclaimed))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.GCReclaimedBytes))
}

func TestChannelMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDrop("sub/a")
	m.RecordEvict("sub/b")
	m.SetDepth("sub/a", 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelDropped.WithLabelValues("sub/a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelEvicted.WithLabelValues("sub/b")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ChannelDepth.WithLabelValues("sub/a")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordAlloc(1)
	m.RecordFree(1)
	m.RecordAllocFailure("x")
	m.RecordGC(1, 1)
	m.RecordDrop("c")
	m.RecordEvict("c")
	m.SetDepth("c", 1)
}
