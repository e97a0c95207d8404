package pool

import (
	"errors"
	"math/bits"
	"sync/atomic"

	"github.com/memsentry/memsentry"

	"github.com/memsentry/memsentry/internal/metrics"
)

// ErrPoolInvalid is returned when full-mode construction cannot build all
// of its buffers.
var ErrPoolInvalid = errors.New("pool: ring construction failed")

// paddedUint64 gives an atomic counter its own cache line so the producer
// and consumer indices never false-share.
type paddedUint64 struct {
	n atomic.Uint64
	_ [memsentry.CacheLineSize - 8]byte
}

// paddedPointer is the pointer-typed equivalent, used for chain topology.
type paddedPointer[T any] struct {
	p atomic.Pointer[T]
	_ [memsentry.CacheLineSize - 8]byte
}

// RingPool is a waste-one-slot single-producer/single-consumer ring of
// buffer handles. Capacity is rounded up to the next power of two (minimum
// 2); one slot stays permanently empty so that write == read means empty
// and (write+1) & mask == read means full. Usable capacity is size-1.
//
// The producer is the only writer of the write index, the consumer the
// only writer of the read index. Push and Pop never block.
type RingPool[T any] struct {
	write paddedUint64
	read  paddedUint64

	queue []*Buffer[T]
	size  uint64
	mask  uint64

	valid bool
	empty bool // caller-owned mode: teardown does not free contents
}

// nextPowerOfTwo rounds n up to the next power of two, minimum 2.
func nextPowerOfTwo(n int) uint64 {
	if n < 2 {
		return 2
	}
	return 1 << bits.Len64(uint64(n-1))
}

// NewRingPool constructs a ring of the given capacity.
//
// In full mode (empty=false) the factory builds size-1 buffers up front;
// the pool owns them and destroys whatever is still in its slots at Close.
// If any factory call fails, the buffers built so far are closed and the
// pool is returned invalid alongside the error.
//
// In empty mode (empty=true) the ring starts vacant, the caller owns every
// buffer pushed in, and Close does not free contents.
func NewRingPool[T any](empty bool, queueSize int, factory func() (*Buffer[T], error)) (*RingPool[T], error) {
	size := nextPowerOfTwo(queueSize)
	p := &RingPool[T]{
		queue: make([]*Buffer[T], size),
		size:  size,
		mask:  size - 1,
		empty: empty,
	}

	if empty {
		p.valid = true
		return p, nil
	}

	for i := uint64(0); i < size-1; i++ {
		buf, err := factory()
		if err != nil || buf == nil {
			p.cleanup()
			if err == nil {
				err = ErrPoolInvalid
			}
			return p, err
		}
		p.queue[i] = buf
	}
	p.write.n.Store(size - 1)
	p.valid = true
	return p, nil
}

// IsValid reports whether construction fully succeeded. Check it before
// using a full-mode pool.
func (p *RingPool[T]) IsValid() bool { return p.valid }

// QueueSize returns the internal capacity, one more than the usable slot
// count.
func (p *RingPool[T]) QueueSize() int { return int(p.size) }

// UsableCapacity returns the number of buffers the ring can hold.
func (p *RingPool[T]) UsableCapacity() int { return int(p.size - 1) }

// freeSpace returns the free slots from the producer's perspective.
func (p *RingPool[T]) freeSpace(currentWrite uint64) uint64 {
	currentRead := p.read.n.Load()
	return p.size - ((currentWrite - currentRead) & p.mask) - 1
}

// Push deposits a buffer. Producer-side only; refuses nil and returns
// false when no slot is free.
func (p *RingPool[T]) Push(buf *Buffer[T]) bool {
	if buf == nil {
		metrics.PoolPushesTotal.WithLabelValues("nil").Inc()
		return false
	}

	currentWrite := p.write.n.Load()
	if p.freeSpace(currentWrite) == 0 {
		metrics.PoolPushesTotal.WithLabelValues("full").Inc()
		return false
	}

	p.queue[currentWrite] = buf
	p.write.n.Store((currentWrite + 1) & p.mask)
	metrics.PoolPushesTotal.WithLabelValues("ok").Inc()
	return true
}

// Pop takes the oldest buffer. Consumer-side only; returns nil when the
// ring is drained.
func (p *RingPool[T]) Pop() *Buffer[T] {
	currentWrite := p.write.n.Load()
	currentRead := p.read.n.Load()

	if (currentWrite-currentRead)&p.mask == 0 {
		metrics.PoolPopsTotal.WithLabelValues("empty").Inc()
		return nil
	}

	buf := p.queue[currentRead]
	p.queue[currentRead] = nil
	p.read.n.Store((currentRead + 1) & p.mask)
	metrics.PoolPopsTotal.WithLabelValues("ok").Inc()
	return buf
}

// CurrentSize returns the number of buffers currently in the ring.
func (p *RingPool[T]) CurrentSize() int {
	currentRead := p.read.n.Load()
	currentWrite := p.write.n.Load()
	return int((currentWrite - currentRead) & p.mask)
}

// Close tears the ring down. In full mode any buffers still in slots are
// closed; in empty mode in-flight buffers remain the caller's
// responsibility. Not safe concurrently with Push or Pop.
func (p *RingPool[T]) Close() error {
	p.cleanup()
	return nil
}

func (p *RingPool[T]) cleanup() {
	p.valid = false
	p.write.n.Store(0)
	p.read.n.Store(0)

	if !p.empty {
		for i, buf := range p.queue {
			if buf != nil {
				_ = buf.Close()
				p.queue[i] = nil
			}
		}
	} else {
		for i := range p.queue {
			p.queue[i] = nil
		}
	}
}
