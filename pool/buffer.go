// Package pool provides lock-free object recycling: a typed Buffer cell,
// a waste-one-slot SPSC ring of buffer handles, and a growable chain of
// such rings. Rings and chains never block; they rely on acquire/release
// index handoff between exactly one producer and one consumer.
package pool

import (
	"fmt"
	"unsafe"

	"github.com/memsentry/memsentry"
)

// noCopy flags accidental copies under go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Buffer holds exactly one T. Storage is either the buffer's own field or,
// with tracked backing, an aligned payload from the tracking allocator.
// Buffers are handles: do not copy them after creation.
type Buffer[T any] struct {
	_       noCopy
	inline  T
	val     *T
	dtor    func(*T)
	tracked []byte
	tr      *memsentry.Tracker
	closed  bool
}

// NewBuffer constructs a Buffer owning one T built by ctor. The optional
// dtor runs once when the buffer is closed.
func NewBuffer[T any](ctor func() T, dtor func(*T)) *Buffer[T] {
	b := &Buffer[T]{dtor: dtor}
	if ctor != nil {
		b.inline = ctor()
	}
	b.val = &b.inline
	return b
}

// NewInlineBuffer constructs a Buffer holding v in its own storage.
func NewInlineBuffer[T any](v T, dtor func(*T)) *Buffer[T] {
	b := &Buffer[T]{inline: v, dtor: dtor}
	b.val = &b.inline
	return b
}

// NewTrackedBuffer constructs a Buffer whose T is backed by an aligned
// tracked allocation on the given heap. The payload is not scanned by the
// garbage collector, so T must not contain Go pointers.
func NewTrackedBuffer[T any](h *memsentry.Heap, alignment int, ctor func() T, dtor func(*T)) (*Buffer[T], error) {
	var zero T
	tr := memsentry.Default()
	buf, err := tr.AllocateAligned(int(unsafe.Sizeof(zero)), alignment, h)
	if err != nil {
		return nil, fmt.Errorf("tracked buffer: %w", err)
	}
	b := &Buffer[T]{
		val:     (*T)(unsafe.Pointer(&buf[0])),
		dtor:    dtor,
		tracked: buf,
		tr:      tr,
	}
	if ctor != nil {
		*b.val = ctor()
	}
	return b, nil
}

// Get returns the stored T. Nil after Close.
func (b *Buffer[T]) Get() *T {
	if b.closed {
		return nil
	}
	return b.val
}

// Close runs the destructor and releases tracked storage. Idempotent.
func (b *Buffer[T]) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.dtor != nil {
		b.dtor(b.val)
	}
	if b.tracked != nil {
		b.tr.Free(b.tracked)
		b.tracked = nil
	}
	b.val = nil
	return nil
}
