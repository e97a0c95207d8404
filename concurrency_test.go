package memsentry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcurrentAllocFreeReturnsToZero(t *testing.T) {
	tr, alloc := newTestTracker(t)
	h := NewHeap("stress")

	const workers = 8
	const iters = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			local := make([][]byte, 0, 8)
			for i := 0; i < iters; i++ {
				size := 1 + (seed*31+i)%256
				buf, err := tr.Allocate(size, h)
				if err != nil {
					t.Error(err)
					return
				}
				local = append(local, buf)
				if len(local) >= 8 {
					for _, b := range local {
						tr.Free(b)
					}
					local = local[:0]
				}
			}
			for _, b := range local {
				tr.Free(b)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(0), h.TotalBytes())
	assert.Equal(t, 0, h.AllocationCount())
	alloc.AssertSize(t, 0)
}

func TestConcurrentAllocationsAcrossHeaps(t *testing.T) {
	tr, _ := newTestTracker(t)

	a := NewHeap("multi-a")
	b := NewHeap("multi-b")
	a.Connect(b)

	var wg sync.WaitGroup
	for _, h := range []*Heap{a, b} {
		wg.Add(1)
		go func(h *Heap) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				buf, err := tr.Allocate(16, h)
				if err != nil {
					t.Error(err)
					return
				}
				tr.Free(buf)
			}
		}(h)
	}

	// Hierarchical queries run concurrently with traffic on both heaps.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if total := a.TotalHH(); total < 0 {
				t.Errorf("negative hierarchical total %d", total)
			}
		}
	}()

	wg.Wait()
	<-done

	assert.Equal(t, int64(0), a.TotalHH())
	assert.Equal(t, 0, a.CountAllocationsHH())
}
