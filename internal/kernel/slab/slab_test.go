package slab

import (
	"testing"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAllocator(nFrames int) *Allocator {
	ft := pmm.NewFrameTable(nFrames)
	kb := pmm.NewKernelBitmap(ft, nFrames)
	return New(kb, pmm.PageSize)
}

func TestAllocSizedToClass(t *testing.T) {
	a := newAllocator(4)
	b, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Len(t, b.Bytes, 16)

	b2, err := a.Alloc(900)
	require.NoError(t, err)
	assert.Len(t, b2.Bytes, 1024)
}

func TestAllocReusesFreedBlockWithinArena(t *testing.T) {
	a := newAllocator(4)
	keep, err := a.Alloc(16) // keeps the arena in use across b1's Free
	require.NoError(t, err)
	b1, err := a.Alloc(16)
	require.NoError(t, err)
	b1.Bytes[0] = 0x42
	freedOff := b1.off
	a.Free(b1)

	b2, err := a.Alloc(16)
	require.NoError(t, err)
	// Same arena should be reused rather than allocating a new kernel page.
	assert.Equal(t, 1, len(a.arenas[0]))
	assert.Same(t, keep.arena, b2.arena)
	assert.Equal(t, freedOff, b2.off, "the freed block is handed out again")
}

func TestManySmallAllocationsShareOnePage(t *testing.T) {
	a := newAllocator(4)
	var blocks []*Block
	for i := 0; i < pmm.PageSize/16; i++ {
		b, err := a.Alloc(16)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	// All 16-byte blocks fit in a single page-backed arena.
	assert.Len(t, a.arenas[0], 1)
	for _, b := range blocks {
		a.Free(b)
	}
}

func TestArenaDestroyedWhenEmpty(t *testing.T) {
	a := newAllocator(2)
	b, err := a.Alloc(16)
	require.NoError(t, err)
	assert.Len(t, a.arenas[0], 1)

	a.Free(b)
	assert.Len(t, a.arenas[0], 0, "arena should be disassembled once in-use count hits zero")
}

func TestFreeOfAlreadyFreedBlockPanics(t *testing.T) {
	a := newAllocator(2)
	b, err := a.Alloc(16)
	require.NoError(t, err)
	a.Free(b)
	assert.Panics(t, func() { a.Free(b) })
}

func TestLargeAllocationSpansMultiplePages(t *testing.T) {
	a := newAllocator(8)
	b, err := a.Alloc(3 * pmm.PageSize)
	require.NoError(t, err)
	assert.Len(t, b.Bytes, 3*pmm.PageSize)
	a.Free(b)
}

func TestAllocFailsWhenFramesExhausted(t *testing.T) {
	a := newAllocator(1)
	_, err := a.Alloc(16)
	require.NoError(t, err)
	_, err = a.Alloc(2000) // needs a fresh page, none left
	assert.ErrorIs(t, err, pmm.ErrNoSpace)
}
