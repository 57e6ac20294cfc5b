package vm

import (
	"testing"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpace(t *testing.T, nFrames int) (*AddressSpace, *pmm.FrameTable) {
	t.Helper()
	frames := pmm.NewFrameTable(nFrames)
	return New(frames, UserExecAddr), frames
}

func TestLinkAndUnlinkPage(t *testing.T) {
	as, frames := newSpace(t, 8)

	require.NoError(t, as.LinkPage(UserExecAddr, true))
	f, ok := as.Translate(UserExecAddr)
	require.True(t, ok)
	assert.Equal(t, uint8(1), frames.RefCount(f))

	as.UnlinkPage(UserExecAddr)
	_, ok = as.Translate(UserExecAddr)
	assert.False(t, ok)
}

func TestLinkPageRejectsDoubleMap(t *testing.T) {
	as, _ := newSpace(t, 4)
	require.NoError(t, as.LinkPage(UserExecAddr, true))
	assert.Error(t, as.LinkPage(UserExecAddr, true))
}

func TestCopyPDESharesFramesCopyOnWrite(t *testing.T) {
	as, frames := newSpace(t, 8)
	require.NoError(t, as.LinkPage(UserExecAddr, true))
	parentFrame, _ := as.Translate(UserExecAddr)

	child := as.CopyPDE()

	assert.Equal(t, uint8(2), frames.RefCount(parentFrame), "fork must bump the shared frame's refcount")

	parentEntry := as.entryAt(UserExecAddr, false)
	childEntry := child.entryAt(UserExecAddr, false)
	assert.False(t, parentEntry.writable, "parent's page must become read-only after fork")
	assert.False(t, childEntry.writable, "child's page must start read-only (CoW)")

	childFrame, ok := child.Translate(UserExecAddr)
	require.True(t, ok)
	assert.Equal(t, parentFrame, childFrame, "CoW pages are shared, not duplicated, until written")
}

func TestHandleFaultWriteToSoleOwnerCoWPageJustFlipsWritable(t *testing.T) {
	as, frames := newSpace(t, 8)
	require.NoError(t, as.LinkPage(UserExecAddr, false))
	f, _ := as.Translate(UserExecAddr)
	require.Equal(t, uint8(1), frames.RefCount(f))

	kind, err := as.HandleFault(UserExecAddr, ErrorCode{Present: true, Write: true, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultResolved, kind)

	stillSame, _ := as.Translate(UserExecAddr)
	assert.Equal(t, f, stillSame, "sole owner does not need a new frame")
}

func TestHandleFaultWriteToSharedCoWPageDuplicates(t *testing.T) {
	as, frames := newSpace(t, 8)
	require.NoError(t, as.LinkPage(UserExecAddr, true))
	copy(as.Bytes(UserExecAddr), []byte("parent data"))
	child := as.CopyPDE()

	kind, err := child.HandleFault(UserExecAddr, ErrorCode{Present: true, Write: true, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultResolved, kind)

	parentFrame, _ := as.Translate(UserExecAddr)
	childFrame, _ := child.Translate(UserExecAddr)
	assert.NotEqual(t, parentFrame, childFrame, "write must duplicate the page, not mutate the shared one")
	assert.Equal(t, uint8(1), frames.RefCount(parentFrame))
	assert.Equal(t, []byte("parent data"), as.Bytes(UserExecAddr)[:len("parent data")])
}

func TestHandleFaultDemandPagesHeapAndStack(t *testing.T) {
	as, _ := newSpace(t, 8)
	as.brk = UserExecAddr + pmm.PageSize*4

	kind, err := as.HandleFault(UserExecAddr, ErrorCode{Present: false, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultResolved, kind)
	_, ok := as.Translate(UserExecAddr)
	assert.True(t, ok)

	kind, err = as.HandleFault(UserStackTop-pmm.PageSize, ErrorCode{Present: false, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultResolved, kind)
}

func TestHandleFaultOutOfRangeIsFatal(t *testing.T) {
	as, _ := newSpace(t, 8)
	kind, err := as.HandleFault(0, ErrorCode{Present: false, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultFatal, kind)

	kind, err = as.HandleFault(UserStackTop, ErrorCode{Present: false, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultFatal, kind)
}

func TestHandleFaultReadOnlyMappingIsFatalOnWrite(t *testing.T) {
	as, _ := newSpace(t, 8)
	require.NoError(t, as.LinkPage(UserExecAddr, false))
	e := as.entryAt(UserExecAddr, false)
	e.readOnly = true

	kind, err := as.HandleFault(UserExecAddr, ErrorCode{Present: true, Write: true, User: true})
	require.NoError(t, err)
	assert.Equal(t, FaultFatal, kind)
}

func TestFreePDEReleasesAllFrames(t *testing.T) {
	as, frames := newSpace(t, 8)
	require.NoError(t, as.LinkPage(UserExecAddr, true))
	require.NoError(t, as.LinkPage(UserExecAddr+pmm.PageSize, true))
	assert.Equal(t, 6, frames.FreeCount())

	as.FreePDE()
	assert.Equal(t, 8, frames.FreeCount())
}

func TestBrkGrowsAndShrinks(t *testing.T) {
	as, frames := newSpace(t, 16)
	newBrk, err := as.Brk(UserExecAddr + pmm.PageSize*4)
	require.NoError(t, err)
	assert.Equal(t, UserExecAddr+pmm.PageSize*4, newBrk)

	// Demand-page one of the new heap pages, then shrink back past it.
	_, err = as.HandleFault(UserExecAddr+pmm.PageSize, ErrorCode{Present: false, User: true})
	require.NoError(t, err)
	before := frames.FreeCount()

	_, err = as.Brk(UserExecAddr)
	require.NoError(t, err)
	assert.Greater(t, frames.FreeCount(), before, "shrinking brk must free mapped pages")
}

func TestBrkRejectsMisalignedOrOutOfRange(t *testing.T) {
	as, _ := newSpace(t, 8)
	_, err := as.Brk(UserExecAddr + 1)
	assert.Error(t, err)

	_, err = as.Brk(UserMmapAddr)
	assert.Error(t, err)
}

func TestMmapAndMunmapRoundTrip(t *testing.T) {
	as, frames := newSpace(t, 16)
	base, err := as.Mmap(2, MmapProt{Writable: true}, []byte("hello mmap"))
	require.NoError(t, err)
	assert.Equal(t, uint32(UserMmapAddr), base)
	assert.Equal(t, []byte("hello mmap"), as.Bytes(base)[:len("hello mmap")])

	before := frames.FreeCount()
	require.NoError(t, as.Munmap(base, 2))
	assert.Equal(t, before+2, frames.FreeCount())
}

func TestMmapRejectsRegionOutsideWindow(t *testing.T) {
	as, _ := newSpace(t, 16)
	err := as.Munmap(UserExecAddr, 1)
	assert.Error(t, err)
}
