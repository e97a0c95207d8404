package memsentry

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Profiler accumulates cumulative allocation traffic across every tracker
// in the process. Unlike per-heap counters, which return to zero as blocks
// are freed, the profiler keeps historical totals and the peak outstanding
// byte count.
type Profiler struct {
	startTime   time.Time
	allocations atomic.Int64
	allocBytes  atomic.Int64
	frees       atomic.Int64
	freedBytes  atomic.Int64
	peakUsage   atomic.Int64
}

var globalProfiler atomic.Pointer[Profiler]

func init() {
	globalProfiler.Store(&Profiler{startTime: time.Now()})
}

// GetProfiler returns the process-wide profiler.
func GetProfiler() *Profiler {
	return globalProfiler.Load()
}

// ResetProfiler installs a fresh profiler and returns it.
func ResetProfiler() *Profiler {
	p := &Profiler{startTime: time.Now()}
	globalProfiler.Store(p)
	return p
}

func (p *Profiler) recordAllocation(size int64) {
	p.allocations.Add(1)
	current := p.allocBytes.Add(size) - p.freedBytes.Load()
	for {
		peak := p.peakUsage.Load()
		if current <= peak || p.peakUsage.CompareAndSwap(peak, current) {
			return
		}
	}
}

func (p *Profiler) recordFree(size int64) {
	p.frees.Add(1)
	p.freedBytes.Add(size)
}

// ProfilerStats is a point-in-time snapshot of cumulative traffic.
type ProfilerStats struct {
	Duration         time.Duration
	TotalAllocations int64
	TotalAllocBytes  int64
	TotalFrees       int64
	TotalFreedBytes  int64
	PeakUsage        int64
	CurrentUsage     int64
}

// Stats snapshots the profiler.
func (p *Profiler) Stats() ProfilerStats {
	return ProfilerStats{
		Duration:         time.Since(p.startTime),
		TotalAllocations: p.allocations.Load(),
		TotalAllocBytes:  p.allocBytes.Load(),
		TotalFrees:       p.frees.Load(),
		TotalFreedBytes:  p.freedBytes.Load(),
		PeakUsage:        p.peakUsage.Load(),
		CurrentUsage:     p.allocBytes.Load() - p.freedBytes.Load(),
	}
}

// ----------------------------------------------------------------------------
// Per-heap snapshots

// HeapStats is a point-in-time snapshot of one heap.
type HeapStats struct {
	Name            string
	TotalBytes      int64
	AllocationCount int
	NextID          uint64
}

// Stats snapshots this heap's counters.
func (h *Heap) Stats() HeapStats {
	return HeapStats{
		Name:            h.name,
		TotalBytes:      h.TotalBytes(),
		AllocationCount: h.AllocationCount(),
		NextID:          h.MemoryBookmark(),
	}
}

func (h *Heap) String() string {
	s := h.Stats()
	return fmt.Sprintf("Heap{name: %s, bytes: %d, allocations: %d}", s.Name, s.TotalBytes, s.AllocationCount)
}

// CollectStats snapshots every registered heap.
func CollectStats() []HeapStats {
	heaps := Heaps()
	out := make([]HeapStats, 0, len(heaps))
	for _, h := range heaps {
		out = append(out, h.Stats())
	}
	return out
}
