package proc

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/hjw1766/XJOS/internal/kernel/blockdev"
	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/hjw1766/XJOS/internal/kernel/sched"
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

// newTestTable builds a full process table over a freshly mkfs'd,
// mounted file system and a frame table generously sized for fork/exec
// tests, and registers pid 1 as init.
func newTestTable(t *testing.T, nFrames int) (*Table, *minixfs.FS) {
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

	frames := pmm.NewFrameTable(nFrames)
	sc := sched.New(sched.NewTask(0, 0))
	tb := NewTable(sc, fsys, frames)
	tb.CreateInit(root, pmm.PageSize, 0)
	return tb, fsys
}

// buildELF32 assembles a minimal ET_EXEC/EM_386 image with a single
// PT_LOAD segment: codeLen bytes of file content (copied verbatim, so a
// test can plant recognizable bytes) followed by (memLen-codeLen) bytes
// of BSS, loaded at vaddr and entered at entry.
func buildELF32(vaddr, entry uint32, code []byte, memLen uint32, writable bool) []byte {
	const ehSize = 52
	const phSize = 32

	buf := make([]byte, ehSize+phSize+len(code))
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(buf[16:18], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(buf[18:20], 3) // EM_386
	binary.LittleEndian.PutUint32(buf[20:24], 1) // e_version
	binary.LittleEndian.PutUint32(buf[24:28], entry)
	binary.LittleEndian.PutUint32(buf[28:32], ehSize) // e_phoff
	binary.LittleEndian.PutUint16(buf[42:44], phSize) // e_phentsize
	binary.LittleEndian.PutUint16(buf[44:46], 1)       // e_phnum

	ph := buf[ehSize : ehSize+phSize]
	binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:8], ehSize+phSize)
	binary.LittleEndian.PutUint32(ph[8:12], vaddr)
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(code)))
	binary.LittleEndian.PutUint32(ph[20:24], memLen)
	flags := uint32(4) // PF_R
	if writable {
		flags |= 2 // PF_W
	} else {
		flags |= 1 // PF_X
	}
	binary.LittleEndian.PutUint32(ph[24:28], flags)
	binary.LittleEndian.PutUint32(ph[28:32], pmm.PageSize)

	copy(buf[ehSize+phSize:], code)
	return buf
}

func writeExecutable(t *testing.T, tb *Table, fsys *minixfs.FS, p *Process, path string, content []byte) {
	t.Helper()
	ctx := newTestContext()
	fd, err := p.Fds.Open(ctx, p.FS, path, minixfs.OCreate|minixfs.OWrite, 0755)
	require.NoError(t, err)
	_, err = p.Fds.Write(ctx, fd, content)
	require.NoError(t, err)
	require.NoError(t, p.Fds.Close(fd))
}
