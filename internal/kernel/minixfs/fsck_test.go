package minixfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFsckReportsCleanOnFreshlyFormattedVolume(t *testing.T) {
	_, _, cache := newTestFS(t, 256)
	ctx := newTestContext()

	report, err := Fsck(ctx, cache, 1)
	require.NoError(t, err)
	assert.True(t, report.OK(), "expected a clean report, got %+v", report)
}

func TestFsckReportsCleanAfterFilesAndDirectoriesAreCreated(t *testing.T) {
	fs, task, cache := newTestFS(t, 256)
	ctx := newTestContext()

	require.NoError(t, fs.Mkdir(ctx, task, "/sub", 0755))
	fds := NewFdTable(fs)
	fd, err := fds.Open(ctx, task, "/sub/file", OCreate|OWrite, 0644)
	require.NoError(t, err)
	_, err = fds.Write(ctx, fd, make([]byte, BlockSize*3))
	require.NoError(t, err)
	require.NoError(t, fds.Close(fd))

	report, err := Fsck(ctx, cache, 1)
	require.NoError(t, err)
	assert.True(t, report.OK(), "expected a clean report, got %+v", report)
}

func TestFsckFlagsAnInodeMarkedUsedWithNoLinks(t *testing.T) {
	fs, task, cache := newTestFS(t, 256)
	ctx := newTestContext()

	require.NoError(t, fs.Mknod(ctx, task, "/orphan", IFREG|0644, 0))

	sb, err := ReadSuperBlock(ctx, cache, 1)
	require.NoError(t, err)
	block, off := sb.inodeBlockAndOffset(2)
	buf, err := cache.Read(ctx, 1, block)
	require.NoError(t, err)
	d := decodeInode(buf.Data[off : off+InodeSize])
	d.NLinks = 0
	d.encode(buf.Data[off : off+InodeSize])
	cache.MarkDirty(buf, true)
	cache.Release(buf)
	sb.Close(cache)

	report, err := Fsck(ctx, cache, 1)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Contains(t, report.LeakedInodes, uint32(2))
}
