package pool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memsentry/memsentry"
)

func TestBufferConstructAndClose(t *testing.T) {
	var destroyed int
	b := NewBuffer(func() int { return 777 }, func(v *int) { destroyed++ })

	require.NotNil(t, b.Get())
	assert.Equal(t, 777, *b.Get())

	require.NoError(t, b.Close())
	assert.Equal(t, 1, destroyed)
	assert.Nil(t, b.Get())

	// Idempotent.
	require.NoError(t, b.Close())
	assert.Equal(t, 1, destroyed)
}

func TestInlineBuffer(t *testing.T) {
	b := NewInlineBuffer([4]float32{1, 2, 3, 4}, nil)
	require.NotNil(t, b.Get())
	assert.Equal(t, float32(3), b.Get()[2])
	require.NoError(t, b.Close())
}

func TestTrackedBufferAlignmentAndAccounting(t *testing.T) {
	h := memsentry.NewHeap("tracked-buffer")

	b, err := NewTrackedBuffer(h, 64, func() [16]byte { return [16]byte{1} }, nil)
	require.NoError(t, err)

	p := b.Get()
	require.NotNil(t, p)
	assert.Zero(t, uintptr(unsafe.Pointer(p))%64)
	assert.Equal(t, byte(1), p[0])
	assert.Equal(t, 1, h.AllocationCount())

	require.NoError(t, b.Close())
	assert.Equal(t, 0, h.AllocationCount())
	assert.Equal(t, int64(0), h.TotalBytes())
}

func TestBufferNilConstructor(t *testing.T) {
	b := NewBuffer[int64](nil, nil)
	require.NotNil(t, b.Get())
	assert.Zero(t, *b.Get())
	require.NoError(t, b.Close())
}
