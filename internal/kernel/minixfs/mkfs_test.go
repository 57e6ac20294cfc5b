package minixfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkfsWritesValidSuperBlock(t *testing.T) {
	ctx := newTestContext()
	cache, dev := newTestDevice(t, 512, 32)

	require.NoError(t, Mkfs(ctx, cache, dev, 512, 0))

	sb, err := ReadSuperBlock(ctx, cache, dev)
	require.NoError(t, err)
	defer sb.Close(cache)

	assert.Equal(t, uint32(Magic), sb.Disk.Magic)
	assert.Equal(t, uint32(512), sb.Disk.NZones)
	assert.Greater(t, sb.Disk.NInodes, uint32(0))
}

func TestMkfsPreallocatesRootInodeAndZone(t *testing.T) {
	ctx := newTestContext()
	cache, dev := newTestDevice(t, 512, 32)
	require.NoError(t, Mkfs(ctx, cache, dev, 512, 0))

	sb, err := ReadSuperBlock(ctx, cache, dev)
	require.NoError(t, err)
	defer sb.Close(cache)

	assert.True(t, bitAt(sb.imaps, RootInode), "root inode must be marked allocated")
	assert.True(t, bitAt(sb.zmaps, sb.Disk.FirstData), "root directory's data zone must be marked allocated")

	_, ok := findZeroBit(sb.imaps, RootInode, RootInode+1)
	assert.False(t, ok, "bit for root inode must already be set")
}

func TestMkfsRootDirectoryHasDotAndDotDot(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)

	assert.True(t, task.Root.IsDir())
	assert.Equal(t, uint32(RootInode), task.Root.Number)
	assert.Equal(t, uint8(2), task.Root.Disk.NLinks)

	nr, err := fs.scanDirectory(newTestContext(), task.Root, ".")
	require.NoError(t, err)
	assert.Equal(t, uint32(RootInode), nr)

	nr, err = fs.scanDirectory(newTestContext(), task.Root, "..")
	require.NoError(t, err)
	assert.Equal(t, uint32(RootInode), nr)
}
