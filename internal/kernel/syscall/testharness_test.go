package syscall

import (
	"context"
	"testing"

	"github.com/hjw1766/XJOS/internal/kernel/blockdev"
	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/hjw1766/XJOS/internal/kernel/proc"
	"github.com/hjw1766/XJOS/internal/kernel/sched"
	"github.com/hjw1766/XJOS/internal/metrics"
	"github.com/stretchr/testify/require"
)

func newTestContext() context.Context { return context.Background() }

type memDriver struct{ data []byte }

func (m *memDriver) Ioctl(cmd blockdev.IoctlCmd) (int, error) {
	if cmd == blockdev.CmdSectorSize {
		return blockdev.SectorSize, nil
	}
	return 0, nil
}

func (m *memDriver) ReadSectors(start, count int, buf []byte) error {
	copy(buf, m.data[start*blockdev.SectorSize:(start+count)*blockdev.SectorSize])
	return nil
}

func (m *memDriver) WriteSectors(start, count int, buf []byte) error {
	copy(m.data[start*blockdev.SectorSize:(start+count)*blockdev.SectorSize], buf)
	return nil
}

// newTestGate builds a full gate over a freshly mkfs'd, mounted file
// system with pid 1 (init) as the calling process.
func newTestGate(t *testing.T) (*Gate, *proc.Process) {
	t.Helper()
	ctx := newTestContext()

	devTable := blockdev.NewTable()
	drv := &memDriver{data: make([]byte, 512*blockdev.SectorSize)}
	devTable.Register(1, blockdev.TypeBlock, blockdev.SubtypeRamDisk, 0, drv, nil)
	cache := buffercache.New(devTable, 64)
	require.NoError(t, minixfs.Mkfs(ctx, cache, 1, 256, 0))

	fsys := minixfs.New(cache)
	root, err := minixfs.MountRoot(ctx, fsys, 1)
	require.NoError(t, err)

	frames := pmm.NewFrameTable(128)
	sc := sched.New(sched.NewTask(0, 0))
	procs := proc.NewTable(sc, fsys, frames)
	init := procs.CreateInit(root, pmm.PageSize, 0)

	return New(procs, metrics.Noop()), init
}
