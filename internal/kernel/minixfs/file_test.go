package minixfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFileInode(t *testing.T, fs *FS, task *Task, path string) *Inode {
	t.Helper()
	ctx := newTestContext()
	parent, name, err := fs.Named(ctx, task, path)
	require.NoError(t, err)
	defer fs.inodes.Iput(parent)
	require.NoError(t, fs.createRegular(ctx, parent, name, 0644))

	in, err := fs.Namei(ctx, task, path)
	require.NoError(t, err)
	return in
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()
	in := createFileInode(t, fs, task, "/data")
	defer fs.inodes.Iput(in)

	payload := bytes.Repeat([]byte("xjos"), 400) // spans multiple blocks
	n, err := fs.Write(ctx, in, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, uint32(len(payload)), in.Disk.Size)

	got := make([]byte, len(payload))
	n, err = fs.Read(ctx, in, got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, got)
}

func TestPartialWritePreservesSurroundingBytes(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()
	in := createFileInode(t, fs, task, "/partial")
	defer fs.inodes.Iput(in)

	_, err := fs.Write(ctx, in, bytes.Repeat([]byte{'A'}, BlockSize), 0)
	require.NoError(t, err)

	_, err = fs.Write(ctx, in, []byte("BBBB"), 10)
	require.NoError(t, err)

	got := make([]byte, BlockSize)
	_, err = fs.Read(ctx, in, got, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('A'), got[0])
	assert.Equal(t, []byte("BBBB"), got[10:14])
	assert.Equal(t, byte('A'), got[14])
}

func TestReadPastEndOfFileReturnsNothing(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()
	in := createFileInode(t, fs, task, "/short")
	defer fs.inodes.Iput(in)

	_, err := fs.Write(ctx, in, []byte("hi"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := fs.Read(ctx, in, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadOfHoleReturnsZeros(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()
	in := createFileInode(t, fs, task, "/sparse")
	defer fs.inodes.Iput(in)

	// Write far past the first block without touching the blocks in between.
	far := uint32(5 * BlockSize)
	_, err := fs.Write(ctx, in, []byte("end"), far)
	require.NoError(t, err)

	hole := make([]byte, BlockSize)
	n, err := fs.Read(ctx, in, hole, BlockSize)
	require.NoError(t, err)
	assert.Equal(t, BlockSize, n)
	assert.Equal(t, make([]byte, BlockSize), hole)
}

func TestTruncateFreesZonesAndResetsSize(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()
	in := createFileInode(t, fs, task, "/big")
	defer fs.inodes.Iput(in)

	_, err := fs.Write(ctx, in, bytes.Repeat([]byte{'z'}, 3*BlockSize), 0)
	require.NoError(t, err)
	require.NotZero(t, in.Disk.Zones[0])

	require.NoError(t, fs.Truncate(ctx, in))
	assert.Equal(t, uint32(0), in.Disk.Size)
	for _, z := range in.Disk.Zones {
		assert.Equal(t, uint32(0), z)
	}
}

func TestWriteThroughIndirectZone(t *testing.T) {
	fs, task, _ := newTestFS(t, 2048)
	ctx := newTestContext()
	in := createFileInode(t, fs, task, "/indirect")
	defer fs.inodes.Iput(in)

	// DirectZones blocks plus a couple more forces use of the single
	// indirect zone.
	size := (DirectZones + 3) * BlockSize
	payload := bytes.Repeat([]byte{'Q'}, size)
	n, err := fs.Write(ctx, in, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, size, n)
	assert.NotZero(t, in.Disk.Zones[IndirectZone])

	got := make([]byte, size)
	_, err = fs.Read(ctx, in, got, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
