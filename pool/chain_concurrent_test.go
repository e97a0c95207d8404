package pool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One consumer pops (and thereby grows the chain), one producer returns
// handles: the SPSC discipline a chain is built for.
func TestPoolChainSPSCChurn(t *testing.T) {
	var live atomic.Int64

	c, err := NewPoolChain(4, func() (*Buffer[int], error) {
		live.Add(1)
		return NewBuffer(func() int { return 0 }, func(*int) { live.Add(-1) }), nil
	})
	require.NoError(t, err)

	const transfers = 5000
	handoff := make(chan *Buffer[int], 64)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() { // consumer: pops from the chain
		defer wg.Done()
		for i := 0; i < transfers; i++ {
			b, err := c.Pop()
			if err != nil {
				t.Error(err)
				return
			}
			if b == nil {
				t.Error("nil pop")
				return
			}
			handoff <- b
		}
		close(handoff)
	}()

	go func() { // producer: returns them
		defer wg.Done()
		for b := range handoff {
			for !c.Push(b) {
			}
		}
	}()

	wg.Wait()

	popped, err := c.Pop()
	require.NoError(t, err)
	require.NotNil(t, popped, "chain still serves after churn")
	require.True(t, c.Push(popped))

	constructed := live.Load()
	require.NoError(t, c.Close())
	assert.Zero(t, live.Load(), "close destroys all %d constructed buffers", constructed)
}
