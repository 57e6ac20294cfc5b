package pmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFrameExhaustion(t *testing.T) {
	ft := NewFrameTable(2)
	_, err := ft.AllocFrame()
	require.NoError(t, err)
	_, err = ft.AllocFrame()
	require.NoError(t, err)

	_, err = ft.AllocFrame()
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestPutFrameFreesAtZeroRefcount(t *testing.T) {
	ft := NewFrameTable(1)
	f, err := ft.AllocFrame()
	require.NoError(t, err)

	ft.RefFrame(f) // refcount 2, simulating a CoW-shared page
	assert.Equal(t, uint8(2), ft.RefCount(f))

	ft.PutFrame(f)
	assert.Equal(t, uint8(1), ft.RefCount(f))
	assert.Equal(t, 0, ft.FreeCount())

	ft.PutFrame(f)
	assert.Equal(t, 1, ft.FreeCount())

	f2, err := ft.AllocFrame()
	require.NoError(t, err)
	assert.Equal(t, f, f2)
}

func TestPutFrameOnFreeFramePanics(t *testing.T) {
	ft := NewFrameTable(1)
	f, err := ft.AllocFrame()
	require.NoError(t, err)
	ft.PutFrame(f)
	assert.Panics(t, func() { ft.PutFrame(f) })
}

func TestFrameBytesAreZeroFilledAndIsolated(t *testing.T) {
	ft := NewFrameTable(2)
	f1, _ := ft.AllocFrame()
	f2, _ := ft.AllocFrame()

	ft.Bytes(f1)[0] = 0xAA
	assert.Equal(t, byte(0), ft.Bytes(f2)[0])
}
