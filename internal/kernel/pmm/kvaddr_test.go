package pmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocKPagesContiguousAndZeroed(t *testing.T) {
	ft := NewFrameTable(16)
	kb := NewKernelBitmap(ft, 16)

	base, err := kb.AllocKPages(4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		b := kb.Bytes(base + KVAddr(i))
		assert.Len(t, b, PageSize)
		assert.Equal(t, byte(0), b[0])
	}
	assert.Equal(t, 12, ft.FreeCount())
}

func TestAllocKPagesFailsWhenBitmapFull(t *testing.T) {
	ft := NewFrameTable(16)
	kb := NewKernelBitmap(ft, 4)

	_, err := kb.AllocKPages(4)
	require.NoError(t, err)

	_, err = kb.AllocKPages(1)
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestAllocKPagesFailsWhenFramesExhaustedAndRollsBack(t *testing.T) {
	ft := NewFrameTable(2)
	kb := NewKernelBitmap(ft, 8)

	_, err := kb.AllocKPages(3)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, 2, ft.FreeCount(), "partial allocation must be rolled back")
}

func TestFreeKPagesUnmapsAndFreesFrames(t *testing.T) {
	ft := NewFrameTable(4)
	kb := NewKernelBitmap(ft, 4)

	base, err := kb.AllocKPages(4)
	require.NoError(t, err)
	assert.Equal(t, 0, ft.FreeCount())

	kb.FreeKPages(base, 4)
	assert.Equal(t, 4, ft.FreeCount())
}

func TestFreeKPagesDoubleFreePanics(t *testing.T) {
	ft := NewFrameTable(4)
	kb := NewKernelBitmap(ft, 4)
	base, _ := kb.AllocKPages(2)
	kb.FreeKPages(base, 2)
	assert.Panics(t, func() { kb.FreeKPages(base, 2) })
}

func TestFindRunSkipsUsedRegions(t *testing.T) {
	ft := NewFrameTable(16)
	kb := NewKernelBitmap(ft, 8)

	first, err := kb.AllocKPages(3)
	require.NoError(t, err)
	second, err := kb.AllocKPages(3)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	kb.FreeKPages(first, 3)

	third, err := kb.AllocKPages(3)
	require.NoError(t, err)
	assert.Equal(t, first, third, "freed run should be reused")
}
