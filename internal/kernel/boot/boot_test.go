package boot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hjw1766/XJOS/cfg"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, imagePath string) cfg.Config {
	t.Helper()
	c := cfg.Default()
	c.Disk.TotalBlocks = 512
	c.Disk.BufferCountLimit = 32
	c.Memory.PhysicalMemoryMB = 16
	c.Memory.KernelMemoryMB = 16
	c.Disk.ImagePath = imagePath
	return c
}

func TestBootOverRAMDiskMkfsAndMountRoot(t *testing.T) {
	ctx := context.Background()
	k, err := Boot(ctx, testConfig(t, ""))
	require.NoError(t, err)
	defer k.Close(ctx)

	require.NoError(t, k.Mkfs(ctx, RootDevice, 0))

	init, err := k.MountRootAndInit(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), init.PID())
	require.NotNil(t, k.Gate)
}

func TestBootOverFileDiskPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "xjos.img")

	k1, err := Boot(ctx, testConfig(t, path))
	require.NoError(t, err)
	require.NoError(t, k1.Mkfs(ctx, RootDevice, 0))
	_, err = k1.MountRootAndInit(ctx)
	require.NoError(t, err)
	require.NoError(t, k1.Close(ctx))

	k2, err := Boot(ctx, testConfig(t, path))
	require.NoError(t, err)
	defer k2.Close(ctx)

	init, err := k2.MountRootAndInit(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), init.PID())
}

func TestBootRejectsInvalidConfig(t *testing.T) {
	c := testConfig(t, "")
	c.Disk.TotalBlocks = 0

	_, err := Boot(context.Background(), c)
	require.Error(t, err)
}
