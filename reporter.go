package memsentry

// Reporter is the hook surface invoked by a Heap as allocations come and
// go and when ReportMemory walks the tracking list.
//
// All three callbacks run while the heap's lock is held. Implementations
// must be non-blocking and must not call back into the Heap; copy the
// header fields out and defer any slow work.
type Reporter interface {
	// OnAlloc fires after a block is registered with the heap.
	OnAlloc(h *AllocHeader)

	// OnDealloc fires after a block is unlinked from the heap, before the
	// raw memory is released.
	OnDealloc(h *AllocHeader)

	// Report fires once per header selected by Heap.ReportMemory.
	Report(h *AllocHeader)
}
