package minixfs

import (
	"context"
	"sync"
	"testing"

	"github.com/hjw1766/XJOS/internal/kernel/blockdev"
	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
	"github.com/stretchr/testify/require"
)

func newTestContext() context.Context { return context.Background() }

type memDriver struct {
	mu   sync.Mutex
	data []byte
}

func newMemDriver(sectors int) *memDriver {
	return &memDriver{data: make([]byte, sectors*blockdev.SectorSize)}
}

func (m *memDriver) Ioctl(cmd blockdev.IoctlCmd) (int, error) {
	if cmd == blockdev.CmdSectorSize {
		return blockdev.SectorSize, nil
	}
	return 0, nil
}

func (m *memDriver) ReadSectors(start, count int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(buf, m.data[start*blockdev.SectorSize:(start+count)*blockdev.SectorSize])
	return nil
}

func (m *memDriver) WriteSectors(start, count int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[start*blockdev.SectorSize:(start+count)*blockdev.SectorSize], buf)
	return nil
}

// newTestDevice builds a cache over a fresh in-memory ramdisk sized for
// totalBlocks 1 KiB blocks, registered as device id 1.
func newTestDevice(t *testing.T, totalBlocks int, cacheCapacity int) (*buffercache.Cache, uint32) {
	t.Helper()
	table := blockdev.NewTable()
	table.Register(1, blockdev.TypeBlock, blockdev.SubtypeRamDisk, 0, newMemDriver(totalBlocks*2), nil)
	return buffercache.New(table, cacheCapacity), 1
}

// newTestFS builds a freshly mkfs'd, mounted file system, returning the FS,
// its bootstrap Task, and the buffer cache backing it for out-of-band
// assertions.
func newTestFS(t *testing.T, totalBlocks int) (*FS, *Task, *buffercache.Cache) {
	t.Helper()
	ctx := newTestContext()
	cache, dev := newTestDevice(t, totalBlocks, 64)

	require.NoError(t, Mkfs(ctx, cache, dev, totalBlocks, 0))

	fs := New(cache)
	task, err := MountRoot(ctx, fs, dev)
	require.NoError(t, err)
	return fs, task, cache
}
