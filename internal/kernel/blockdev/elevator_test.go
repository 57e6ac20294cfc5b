package blockdev

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDriver is a trivial in-memory block device for tests: ReadSectors and
// WriteSectors operate on a flat byte slice, and it reports no partition
// offset so logical blocks map straight to absolute sectors.
type memDriver struct {
	mu   sync.Mutex
	data []byte
}

func newMemDriver(sectors int) *memDriver {
	return &memDriver{data: make([]byte, sectors*SectorSize)}
}

func (m *memDriver) Ioctl(cmd IoctlCmd) (int, error) {
	switch cmd {
	case CmdSectorStart:
		return 0, nil
	case CmdSectorSize:
		return SectorSize, nil
	}
	return 0, nil
}

func (m *memDriver) ReadSectors(start, count int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(buf, m.data[start*SectorSize:(start+count)*SectorSize])
	return nil
}

func (m *memDriver) WriteSectors(start, count int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[start*SectorSize:(start+count)*SectorSize], buf)
	return nil
}

func TestSingleRequestRunsImmediately(t *testing.T) {
	table := NewTable()
	drv := newMemDriver(64)
	table.Register(1, TypeBlock, SubtypeRamDisk, 0, drv, nil)

	buf := make([]byte, 1024)
	copy(buf, []byte("hello"))
	err := table.Submit(context.Background(), 1, 3, 1, buf, Write)
	require.NoError(t, err)

	out := make([]byte, 1024)
	err = table.Submit(context.Background(), 1, 3, 1, out, Read)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

// stallingDriver delays each read so a test can force several requests to
// queue up behind the one currently running, the way an "enqueue requests
// for blocks 10, 5, 30, 20 on an idle disk" scenario requires.
type stallingDriver struct {
	*memDriver
	started chan int
	release chan struct{}
}

func (d *stallingDriver) ReadSectors(start, count int, buf []byte) error {
	d.started <- start
	<-d.release
	return d.memDriver.ReadSectors(start, count, buf)
}

func TestElevatorOrdersConcurrentRequests(t *testing.T) {
	table := NewTable()
	drv := &stallingDriver{memDriver: newMemDriver(256), started: make(chan int, 8), release: make(chan struct{})}
	table.Register(1, TypeBlock, SubtypeRamDisk, 0, drv, nil)

	var mu sync.Mutex
	var order []int
	record := func(b int) {
		mu.Lock()
		order = append(order, b)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	submit := func(b int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 1024)
			require.NoError(t, table.Submit(context.Background(), 1, b, 1, buf, Read))
			record(b)
		}()
	}

	submit(10)
	assert.Equal(t, 10, <-drv.started, "block 10 must start on the idle disk before the others arrive")

	for _, b := range []int{5, 30, 20} {
		submit(b)
	}
	// Let all three reach the pending queue before unblocking block 10.
	time.Sleep(20 * time.Millisecond)
	close(drv.release)
	wg.Wait()

	require.Equal(t, []int{10, 20, 30, 5}, order,
		"elevator must continue up (20, then 30) before reversing down to 5")
}

func TestDeviceTableParentResolution(t *testing.T) {
	table := NewTable()
	drv := newMemDriver(256)
	physical := table.Register(1, TypeBlock, SubtypeIdeDisk, 0, drv, nil)
	partDrv := &partitionDriver{parent: drv, offsetSectors: 64}
	table.Register(2, TypeBlock, SubtypeIdePart, 1, partDrv, nil)

	buf := make([]byte, 1024)
	copy(buf, []byte("partitioned"))
	err := table.Submit(context.Background(), 2, 0, 1, buf, Write)
	require.NoError(t, err)

	out := make([]byte, 1024)
	err = table.Submit(context.Background(), 1, 32, 1, out, Read) // block 32 == sector 64
	require.NoError(t, err)
	assert.Equal(t, buf, out)
	_ = physical
}

// partitionDriver reports a non-zero SECTOR_START offset but delegates the
// actual I/O to the underlying physical driver, modeling an IdePart device.
type partitionDriver struct {
	parent        *memDriver
	offsetSectors int
}

func (p *partitionDriver) Ioctl(cmd IoctlCmd) (int, error) {
	if cmd == CmdSectorStart {
		return p.offsetSectors, nil
	}
	return p.parent.Ioctl(cmd)
}

func (p *partitionDriver) ReadSectors(start, count int, buf []byte) error {
	return p.parent.ReadSectors(start, count, buf)
}

func (p *partitionDriver) WriteSectors(start, count int, buf []byte) error {
	return p.parent.WriteSectors(start, count, buf)
}
