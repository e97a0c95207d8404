package memsentry

import (
	"log/slog"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

// hierarchyMu serialises every topology mutation and every hierarchical
// query across all heaps. Per-heap allocation traffic is not affected.
var hierarchyMu sync.Mutex

// Heap is a named arena. It owns a doubly-linked list of live allocation
// headers, aggregates their byte counts, optionally dispatches to a
// Reporter, and participates in a directed graph of peer heaps for
// hierarchical statistics.
type Heap struct {
	name   string
	nextID atomic.Uint64

	mu       sync.Mutex
	head     *AllocHeader
	tail     *AllocHeader
	total    int64
	reporter Reporter

	// peers holds the outgoing edges of the heap graph, guarded by
	// hierarchyMu rather than mu.
	peers []*Heap

	logger *slog.Logger
}

// NewHeap creates a named heap and registers it in the process-wide
// registry. Names longer than 100 bytes are truncated.
func NewHeap(name string) *Heap {
	if len(name) > maxHeapNameLen {
		name = name[:maxHeapNameLen]
	}
	h := &Heap{
		name:   name,
		logger: slog.Default(),
	}
	registerHeap(h)
	return h
}

// Name returns the heap's label.
func (h *Heap) Name() string { return h.name }

// NextID draws the next allocation identifier. IDs are unique and
// monotonically increasing per heap; they are never reused, even after the
// block is freed. Safe for concurrent use.
func (h *Heap) NextID() uint64 {
	return h.nextID.Add(1)
}

// MemoryBookmark returns the identifier the next allocation on this heap
// will receive, for bracketing a ReportMemory window.
func (h *Heap) MemoryBookmark() uint64 {
	return h.nextID.Load() + 1
}

// TotalBytes returns the bytes currently outstanding on this heap: the sum
// of payload size plus alignment reservation over all live blocks.
func (h *Heap) TotalBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// AllocationCount returns the number of live blocks on this heap.
func (h *Heap) AllocationCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for cur := h.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// SetReporter installs or clears the reporter hook. The heap does not own
// the reporter. Passing nil clears it.
func (h *Heap) SetReporter(r Reporter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reporter = r
}

// addAllocation appends a header to the tracking list, bumps the byte
// counter and fires the reporter. Called by the tracker once the block is
// fully initialised.
func (h *Heap) addAllocation(hdr *AllocHeader) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hdr.next = nil
	hdr.prev = h.tail
	if h.tail != nil {
		h.tail.next = hdr
	} else {
		h.head = hdr
	}
	h.tail = hdr

	h.total += int64(hdr.ReportedBytes())

	if h.reporter != nil {
		h.reporter.OnAlloc(hdr)
	}
}

// removeAlloc unlinks a header from the tracking list and reverses its
// counter contribution. A header that is not on the list is logged and
// skipped; the free itself still proceeds in the caller.
func (h *Heap) removeAlloc(hdr *AllocHeader) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.containsLocked(hdr) {
		h.logger.Warn("removeAlloc: header not in tracking list",
			"heap", h.name, "id", hdr.id, "size", hdr.size)
		return
	}

	switch {
	case hdr.prev == nil && hdr.next == nil:
		// sole node
		h.head = nil
		h.tail = nil
	case hdr.prev == nil:
		// head
		h.head = hdr.next
		h.head.prev = nil
	case hdr.next == nil:
		// tail
		h.tail = hdr.prev
		h.tail.next = nil
	default:
		// middle
		hdr.prev.next = hdr.next
		hdr.next.prev = hdr.prev
	}
	hdr.next = nil
	hdr.prev = nil

	h.total -= int64(hdr.ReportedBytes())

	if h.reporter != nil {
		h.reporter.OnDealloc(hdr)
	}
}

func (h *Heap) containsLocked(hdr *AllocHeader) bool {
	for cur := h.head; cur != nil; cur = cur.next {
		if cur == hdr {
			return true
		}
	}
	return false
}

// ReportMemory walks the tracking list and invokes the reporter's Report
// callback for every live header with startID <= id <= endID. Headers are
// visited in registration order. No-op when no reporter is installed.
func (h *Heap) ReportMemory(startID, endID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reporter == nil {
		return
	}

	cur := h.head
	for cur != nil && cur.id < startID {
		cur = cur.next
	}
	for cur != nil && cur.id <= endID {
		h.reporter.Report(cur)
		cur = cur.next
	}
}

// AddHeap adds a directed edge from this heap to peer. Duplicate edges are
// permitted; traversal deduplicates. Self edges are harmless.
func (h *Heap) AddHeap(peer *Heap) {
	hierarchyMu.Lock()
	defer hierarchyMu.Unlock()
	h.peers = append(h.peers, peer)
}

// Connect links this heap and peer bidirectionally.
func (h *Heap) Connect(peer *Heap) {
	hierarchyMu.Lock()
	defer hierarchyMu.Unlock()
	h.peers = append(h.peers, peer)
	peer.peers = append(peer.peers, h)
}

// TotalHH returns the sum of TotalBytes over every heap reachable from
// this one, this heap included, counting each heap exactly once.
//
// The traversal holds the process-wide hierarchy lock and allocates a
// visited set; keep it off hot paths.
func (h *Heap) TotalHH() int64 {
	hierarchyMu.Lock()
	defer hierarchyMu.Unlock()

	var total int64
	h.visit(mapset.NewThreadUnsafeSet[*Heap](), func(peer *Heap) {
		total += peer.TotalBytes()
	})
	return total
}

// CountAllocationsHH returns the number of live blocks over every heap
// reachable from this one, this heap included, counting each heap exactly
// once. Holds the process-wide hierarchy lock.
func (h *Heap) CountAllocationsHH() int {
	hierarchyMu.Lock()
	defer hierarchyMu.Unlock()

	count := 0
	h.visit(mapset.NewThreadUnsafeSet[*Heap](), func(peer *Heap) {
		count += peer.AllocationCount()
	})
	return count
}

// visit runs fn on every heap reachable from h exactly once, depth first.
// Caller holds hierarchyMu.
func (h *Heap) visit(seen mapset.Set[*Heap], fn func(*Heap)) {
	if !seen.Add(h) {
		return
	}
	fn(h)
	for _, peer := range h.peers {
		peer.visit(seen, fn)
	}
}

// ----------------------------------------------------------------------------
// Registry

var (
	registryMu      sync.Mutex
	registry        []*Heap
	defaultHeapOnce sync.Once
	defaultHeap     *Heap
)

func registerHeap(h *Heap) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, h)
}

// Heaps returns a snapshot of every heap created so far.
func Heaps() []*Heap {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]*Heap, len(registry))
	copy(out, registry)
	return out
}

// DefaultHeap returns the process-wide default heap, creating it on first
// use. Its name comes from MEM_SENTRY_DEFAULT_HEAP, falling back to
// "DefaultHeap".
func DefaultHeap() *Heap {
	defaultHeapOnce.Do(func() {
		name := "DefaultHeap"
		if cfg, err := FromEnv(); err == nil && cfg.DefaultHeapName != "" {
			name = cfg.DefaultHeapName
		}
		defaultHeap = NewHeap(name)
	})
	return defaultHeap
}
