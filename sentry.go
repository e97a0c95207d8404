package memsentry

import (
	"reflect"
	"sync"
	"unsafe"
)

// Per-type heap bindings. Each concrete type can be routed to its own
// arena so that callers never spell the heap at the allocation site; types
// that were never bound fall back to the default heap on first use.
var typeHeaps sync.Map // reflect.Type -> *Heap

// SetHeapFor binds allocations of T made through Alloc and AllocAligned to
// the given heap.
func SetHeapFor[T any](h *Heap) {
	typeHeaps.Store(reflect.TypeFor[T](), h)
}

// HeapFor returns the heap bound to T, lazily binding the default heap if
// none was set.
func HeapFor[T any]() *Heap {
	key := reflect.TypeFor[T]()
	if v, ok := typeHeaps.Load(key); ok {
		return v.(*Heap)
	}
	h, _ := typeHeaps.LoadOrStore(key, DefaultHeap())
	return h.(*Heap)
}

// Alloc places a zero T on the heap bound to T and returns a pointer to
// it. The storage is a tracked payload: it is not scanned by the garbage
// collector, so T must not contain Go pointers.
func Alloc[T any]() (*T, error) {
	return AllocOn[T](HeapFor[T]())
}

// AllocAligned is Alloc at an explicit alignment.
func AllocAligned[T any](alignment int) (*T, error) {
	var zero T
	buf, err := Default().AllocateAligned(int(unsafe.Sizeof(zero)), alignment, HeapFor[T]())
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&buf[0])), nil
}

// AllocOn places a zero T on an explicit heap, bypassing the type binding
// without changing it.
func AllocOn[T any](h *Heap) (*T, error) {
	var zero T
	buf, err := Default().Allocate(int(unsafe.Sizeof(zero)), h)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&buf[0])), nil
}

// Release frees a pointer produced by Alloc, AllocAligned or AllocOn.
// No-op on nil.
func Release[T any](p *T) {
	if p == nil {
		return
	}
	Default().FreePointer(unsafe.Pointer(p))
}
