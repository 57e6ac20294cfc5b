package minixfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameiResolvesRoot(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()

	in, err := fs.Namei(ctx, task, "/")
	require.NoError(t, err)
	defer fs.inodes.Iput(in)
	assert.Equal(t, uint32(RootInode), in.Number)
}

func TestNameiResolvesNestedPath(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()

	require.NoError(t, fs.Mkdir(ctx, task, "/a", 0755))
	require.NoError(t, fs.Mkdir(ctx, task, "/a/b", 0755))
	require.NoError(t, fs.Mkdir(ctx, task, "/a/b/c", 0755))

	in, err := fs.Namei(ctx, task, "/a/b/c")
	require.NoError(t, err)
	defer fs.inodes.Iput(in)
	assert.True(t, in.IsDir())
}

func TestNameiReturnsNotFoundForMissingComponent(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()

	_, err := fs.Namei(ctx, task, "/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNameiReturnsNotDirWhenTraversingThroughAFile(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()

	fd := openOrFail(t, fs, task, "/plain", OCreate|OWrite, 0644)
	require.NoError(t, fd.close())

	_, err := fs.Namei(ctx, task, "/plain/child")
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestDotDotFromRootStaysAtRoot(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()

	in, err := fs.Namei(ctx, task, "/..")
	require.NoError(t, err)
	defer fs.inodes.Iput(in)
	assert.Equal(t, uint32(RootInode), in.Number)
}

func TestDentryCacheServesRepeatLookups(t *testing.T) {
	fs, task, _ := newTestFS(t, 512)
	ctx := newTestContext()
	require.NoError(t, fs.Mkdir(ctx, task, "/cached", 0755))

	in1, err := fs.Namei(ctx, task, "/cached")
	require.NoError(t, err)
	nr1 := in1.Number
	fs.inodes.Iput(in1)

	nr2, ok := fs.dentry.lookup(task.Root.Device, task.Root.Number, "cached")
	require.True(t, ok)
	assert.Equal(t, nr1, nr2)
}
