package pool

import (
	"fmt"

	"github.com/memsentry/memsentry/internal/metrics"
)

// chainNode links one ring pool into a chain. The pool pointer is
// immutable after construction; the node is published to readers by the
// atomic store onto its predecessor's next pointer.
type chainNode[T any] struct {
	pool *RingPool[T]
	next paddedPointer[chainNode[T]]
}

// PoolChain is a growable pool of buffers: a singly-linked list of
// full-mode ring pools sharing one stored factory. Pop walks head to tail
// and appends a fresh ring when every pool is drained, so a pop after any
// number of drains still returns a buffer. Push walks head to tail and
// never grows; it fails only when every pool is full.
//
// The chain follows the SPSC discipline of its rings: one thread pops (and
// therefore grows the topology), one thread pushes.
type PoolChain[T any] struct {
	head paddedPointer[chainNode[T]]
	tail paddedPointer[chainNode[T]]

	factory func() (*RingPool[T], error)
}

// NewPoolChain builds a chain whose rings hold queueSize slots (rounded up
// to a power of two) of buffers built by bufFactory. The first ring is
// constructed immediately.
func NewPoolChain[T any](queueSize int, bufFactory func() (*Buffer[T], error)) (*PoolChain[T], error) {
	size := int(nextPowerOfTwo(queueSize))
	c := &PoolChain[T]{
		factory: func() (*RingPool[T], error) {
			return NewRingPool(false, size, bufFactory)
		},
	}

	pool, err := c.factory()
	if err != nil {
		return nil, fmt.Errorf("pool chain: initial ring: %w", err)
	}
	node := &chainNode[T]{pool: pool}
	c.head.p.Store(node)
	c.tail.p.Store(node)
	return c, nil
}

// addPool appends a fresh ring at the tail. Single writer: only the
// popping thread grows the chain. The store onto the predecessor's next
// pointer publishes the fully-built node to concurrent readers.
func (c *PoolChain[T]) addPool() error {
	pool, err := c.factory()
	if err != nil {
		return fmt.Errorf("pool chain: grow: %w", err)
	}
	node := &chainNode[T]{pool: pool}

	currentTail := c.tail.p.Load()
	currentTail.next.p.Store(node)
	c.tail.p.Store(node)
	metrics.PoolGrowthTotal.Inc()
	return nil
}

// Pop returns a buffer from the first non-drained ring, growing the chain
// when every ring is empty. A pop from the freshly appended full-mode ring
// always succeeds, so the error is non-nil only when growth itself fails.
func (c *PoolChain[T]) Pop() (*Buffer[T], error) {
	for current := c.head.p.Load(); current != nil; current = current.next.p.Load() {
		if buf := current.pool.Pop(); buf != nil {
			return buf, nil
		}
	}

	if err := c.addPool(); err != nil {
		return nil, err
	}

	tail := c.tail.p.Load()
	return tail.pool.Pop(), nil
}

// Push returns a buffer to the first ring with a free slot. Returns false
// only when every ring is full; the chain does not grow on push.
func (c *PoolChain[T]) Push(buf *Buffer[T]) bool {
	for current := c.head.p.Load(); current != nil; current = current.next.p.Load() {
		if current.pool.Push(buf) {
			return true
		}
	}
	return false
}

// Len returns the number of rings currently in the chain.
func (c *PoolChain[T]) Len() int {
	n := 0
	for current := c.head.p.Load(); current != nil; current = current.next.p.Load() {
		n++
	}
	return n
}

// Close destroys every ring and node. Single-threaded; call only when no
// producer or consumer is active.
func (c *PoolChain[T]) Close() error {
	for current := c.head.p.Load(); current != nil; current = current.next.p.Load() {
		_ = current.pool.Close()
	}
	c.head.p.Store(nil)
	c.tail.p.Store(nil)
	return nil
}
