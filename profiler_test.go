package memsentry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerAccumulates(t *testing.T) {
	p := ResetProfiler()
	tr, _ := newTestTracker(t)
	h := NewHeap("profiled")

	buf, err := tr.Allocate(100, h)
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.TotalAllocations)
	assert.Equal(t, int64(100), stats.TotalAllocBytes)
	assert.Equal(t, int64(100), stats.CurrentUsage)
	assert.Equal(t, int64(100), stats.PeakUsage)

	tr.Free(buf)

	stats = p.Stats()
	assert.Equal(t, int64(1), stats.TotalFrees)
	assert.Equal(t, int64(0), stats.CurrentUsage)
	assert.Equal(t, int64(100), stats.PeakUsage, "peak survives the free")
	assert.Equal(t, int64(100), stats.TotalFreedBytes)
}

func TestProfilerPeakTracksHighWater(t *testing.T) {
	p := ResetProfiler()
	tr, _ := newTestTracker(t)
	h := NewHeap("peak")

	a, err := tr.Allocate(64, h)
	require.NoError(t, err)
	b, err := tr.Allocate(64, h)
	require.NoError(t, err)
	tr.Free(a)
	c, err := tr.Allocate(32, h)
	require.NoError(t, err)
	tr.Free(b)
	tr.Free(c)

	stats := p.Stats()
	assert.Equal(t, int64(128), stats.PeakUsage)
	assert.Equal(t, int64(0), stats.CurrentUsage)
}

func TestHeapStatsSnapshot(t *testing.T) {
	tr, _ := newTestTracker(t)
	h := NewHeap("stats-heap")

	buf, err := tr.AllocateAligned(64, 64, h)
	require.NoError(t, err)

	s := h.Stats()
	assert.Equal(t, "stats-heap", s.Name)
	assert.Equal(t, int64(128), s.TotalBytes)
	assert.Equal(t, 1, s.AllocationCount)
	assert.GreaterOrEqual(t, s.NextID, uint64(1))

	assert.Contains(t, h.String(), "stats-heap")

	tr.Free(buf)
}

func TestCollectStatsCoversRegistry(t *testing.T) {
	h := NewHeap("collected")
	all := CollectStats()

	found := false
	for _, s := range all {
		if s.Name == h.Name() && s.TotalBytes == 0 {
			found = true
		}
	}
	assert.True(t, found, "freshly created heap appears in the snapshot")
}
