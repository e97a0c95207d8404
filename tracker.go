package memsentry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/memsentry/memsentry/internal/metrics"
)

// ErrAllocationFailed is returned when the raw allocator yields no memory.
var ErrAllocationFailed = errors.New("memsentry: raw allocator returned no memory")

const minAlignment = int(unsafe.Sizeof(uintptr(0)))

// Tracker is the tracking allocator. It delegates raw memory acquisition
// to an Arrow memory.Allocator, wraps every block with an integrity prefix
// and end marker, and registers it with the owning Heap.
//
// Corruption detected on the free path (double free, buffer overrun,
// foreign pointer) panics: it signals a programming bug that the tracking
// layer exists to surface, and the block is not released because it may
// not be ours.
type Tracker struct {
	base    memory.Allocator
	enabled bool
	metrics bool
	logger  *slog.Logger
}

// NewTracker builds a tracker over the given raw allocator. A nil base
// selects memory.NewGoAllocator(). The configuration is captured once.
func NewTracker(cfg Config, base memory.Allocator) *Tracker {
	if base == nil {
		base = memory.NewGoAllocator()
	}
	return &Tracker{
		base:    base,
		enabled: cfg.Enabled,
		metrics: cfg.Metrics,
		logger:  slog.Default(),
	}
}

// Enabled reports whether tracking is active for this tracker.
func (t *Tracker) Enabled() bool { return t.enabled }

// Allocate returns a payload of the given size tracked on heap h. A nil h
// selects the default heap; a size of 0 is promoted to 1 so the pointer is
// distinct and freeable.
func (t *Tracker) Allocate(size int, h *Heap) ([]byte, error) {
	if size <= 0 {
		size = 1
	}
	if !t.enabled {
		raw := t.base.Allocate(size)
		if len(raw) < size {
			return nil, ErrAllocationFailed
		}
		return raw, nil
	}
	if h == nil {
		h = DefaultHeap()
	}

	total := prefixSize + size + endMarkerSize
	raw := t.base.Allocate(total)
	if len(raw) < total {
		return nil, fmt.Errorf("allocate %d bytes on heap %q: %w", size, h.Name(), ErrAllocationFailed)
	}

	return t.register(raw, prefixSize, size, 0, h), nil
}

// AllocateAligned returns a payload whose address is a multiple of
// alignment, tracked on heap h. The alignment must be a power of two no
// smaller than the pointer size; anything else is a contract violation and
// panics. The heap's byte counter grows by size+alignment, counting the
// alignment reservation alongside the payload.
func (t *Tracker) AllocateAligned(size, alignment int, h *Heap) ([]byte, error) {
	if alignment < minAlignment || alignment&(alignment-1) != 0 {
		panic(fmt.Sprintf("memsentry: alignment %d is not a power of two >= %d", alignment, minAlignment))
	}
	if size <= 0 {
		size = 1
	}
	if !t.enabled {
		raw := t.base.Allocate(size + alignment)
		if len(raw) < size+alignment {
			return nil, ErrAllocationFailed
		}
		off := alignOffset(uintptr(unsafe.Pointer(&raw[0])), alignment)
		return raw[off : off+size : off+size], nil
	}
	if h == nil {
		h = DefaultHeap()
	}

	total := size + alignment + prefixSize + endMarkerSize
	raw := t.base.Allocate(total)
	if len(raw) < total {
		return nil, fmt.Errorf("allocate %d bytes aligned %d on heap %q: %w", size, alignment, h.Name(), ErrAllocationFailed)
	}

	// Place the payload at the first aligned address that leaves room for
	// the prefix; the prefix sits immediately before it, so free is uniform
	// across the aligned and unaligned paths.
	baseAddr := uintptr(unsafe.Pointer(&raw[0]))
	userOff := prefixSize + alignOffset(baseAddr+uintptr(prefixSize), alignment)

	return t.register(raw, userOff, size, alignment, h), nil
}

// alignOffset returns how many bytes past addr the next multiple of
// alignment lies.
func alignOffset(addr uintptr, alignment int) int {
	mask := uintptr(alignment - 1)
	return int((uintptr(alignment) - (addr & mask)) & mask)
}

// register stamps the prefix and end marker into raw, builds the header
// and links it into the heap.
func (t *Tracker) register(raw []byte, userOff, size, alignment int, h *Heap) []byte {
	hdr := &AllocHeader{
		heap:      h,
		raw:       raw,
		userOff:   userOff,
		size:      size,
		alignment: alignment,
		id:        h.NextID(),
		signature: ActiveSignature,
	}

	pfx := hdr.prefix()
	pfx.header = uintptr(unsafe.Pointer(hdr))
	pfx.pad = uint32(userOff - prefixSize)
	pfx.sig = ActiveSignature
	*hdr.endMarker() = EndMarker

	h.addAllocation(hdr)
	GetProfiler().recordAllocation(int64(hdr.ReportedBytes()))

	return raw[userOff : userOff+size : userOff+size]
}

// Free releases a payload previously returned by Allocate or
// AllocateAligned. No-op on nil.
func (t *Tracker) Free(buf []byte) {
	if buf == nil {
		return
	}
	if !t.enabled {
		t.base.Free(buf)
		return
	}
	t.FreePointer(unsafe.Pointer(&buf[0]))
}

// FreePointer releases the tracked block whose payload starts at p. No-op
// on nil. Validates the block's signature and end marker, flips the
// signature to FreedSignature, notifies the owning heap and returns the
// original raw block to the underlying allocator, undoing any alignment
// offset.
func (t *Tracker) FreePointer(p unsafe.Pointer) {
	if p == nil {
		return
	}
	if !t.enabled {
		// Nothing was recorded for this pointer; with the pass-through
		// Go allocator there is nothing to release either.
		return
	}

	pfx := (*blockPrefix)(unsafe.Add(p, -prefixSize))
	switch pfx.sig {
	case ActiveSignature:
	case FreedSignature:
		t.corrupt("double_free")
		panic(fmt.Sprintf("memsentry: double free of %p", p))
	default:
		t.corrupt("foreign")
		panic(fmt.Sprintf("memsentry: free of %p: bad signature 0x%08X (foreign pointer or underrun)", p, pfx.sig))
	}

	// The header is kept alive by the owning heap's tracking list, so the
	// integer round-trip is safe here.
	hdr := (*AllocHeader)(unsafe.Pointer(pfx.header)) //nolint:govet,gosec // prefix back-reference, see above
	if hdr == nil || hdr.userPointer() != p {
		t.corrupt("foreign")
		panic(fmt.Sprintf("memsentry: free of %p: header back-reference mismatch", p))
	}

	if *hdr.endMarker() != EndMarker {
		t.corrupt("overrun")
		panic(fmt.Sprintf("memsentry: free of %p (heap %q, id %d): end marker overwritten (buffer overrun)",
			p, hdr.heap.Name(), hdr.id))
	}

	pfx.sig = FreedSignature
	hdr.signature = FreedSignature

	hdr.heap.removeAlloc(hdr)
	GetProfiler().recordFree(int64(hdr.ReportedBytes()))

	t.base.Free(hdr.raw)
	hdr.raw = nil
}

func (t *Tracker) corrupt(kind string) {
	t.logger.Error("memory corruption detected", "kind", kind)
	if t.metrics {
		metrics.CorruptionDetectedTotal.WithLabelValues(kind).Inc()
	}
}

// ----------------------------------------------------------------------------
// Default tracker

var (
	defaultTrackerOnce sync.Once
	defaultTracker     *Tracker
)

// Default returns the process-wide tracker, built from the environment on
// first use.
func Default() *Tracker {
	defaultTrackerOnce.Do(func() {
		cfg, err := FromEnv()
		if err != nil {
			slog.Warn("memsentry: bad environment, using defaults", "error", err)
			cfg = DefaultConfig()
		}
		defaultTracker = NewTracker(cfg, nil)
	})
	return defaultTracker
}

// Allocate tracks size bytes on heap h via the default tracker.
func Allocate(size int, h *Heap) ([]byte, error) {
	return Default().Allocate(size, h)
}

// AllocateAligned tracks size bytes at the given alignment on heap h via
// the default tracker.
func AllocateAligned(size, alignment int, h *Heap) ([]byte, error) {
	return Default().AllocateAligned(size, alignment, h)
}

// Free releases a payload allocated through the default tracker.
func Free(buf []byte) {
	Default().Free(buf)
}

// FreePointer releases the block whose payload starts at p, via the
// default tracker.
func FreePointer(p unsafe.Pointer) {
	Default().FreePointer(p)
}
