// Package blockdev implements the device table and external device-driver
// interface: a fixed-size device table, per-device elevator request
// queues, and the rule that at most one request executes concurrently per
// physical device.
package blockdev

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hjw1766/XJOS/internal/kernel/kernsync"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Type and Subtype mirror the device table's classification fields.
type Type int

const (
	TypeNull Type = iota
	TypeChar
	TypeBlock
)

type Subtype int

const (
	SubtypeConsole Subtype = iota
	SubtypeKeyboard
	SubtypeIdeDisk
	SubtypeIdePart
	SubtypeSerial
	SubtypeRamDisk
)

// Direction of a request, and of the elevator's current sweep.
type Direction int

const (
	Read Direction = iota
	Write
)

const (
	SweepUp Direction = iota
	SweepDown
)

// IoctlCmd enumerates the two commands the core consumes.
type IoctlCmd int

const (
	CmdSectorStart IoctlCmd = iota
	CmdSectorSize
)

// SectorSize is the disk's native unit: 512-byte sectors, two per 1 KiB block.
const SectorSize = 512

// Driver is the external collaborator interface: ioctl/read/write
// function pointers a concrete device (RAM disk, IDE, console, ...)
// implements. Read/Write operate on whole sectors starting at an absolute
// sector number, synchronously.
type Driver interface {
	Ioctl(cmd IoctlCmd) (int, error)
	ReadSectors(startSector, count int, buf []byte) error
	WriteSectors(startSector, count int, buf []byte) error
}

// Device is one entry of the fixed-size device table.
type Device struct {
	ID       uint32
	Type     Type
	Subtype  Subtype
	ParentID uint32 // 0 if this device has no parent (the physical device itself)
	Driver   Driver

	mu         sync.Mutex
	pending    []*Request
	running    *Request
	direction  Direction
	lastSector int

	sem     *semaphore.Weighted // weight 1: at most one concurrent driver invocation
	limiter *rate.Limiter       // optional sectors/sec throttle, nil = unlimited
}

// Request is one queued block I/O operation.
type Request struct {
	Device        *Device
	Dir           Direction
	StartSector   int // absolute, after partition offset translation
	Count         int
	Buf           []byte
	gate          *kernsync.Gate
	err           error
}

// Table is the fixed-size device table indexed by device id.
type Table struct {
	mu      sync.Mutex
	devices map[uint32]*Device
}

// NewTable creates an empty device table.
func NewTable() *Table {
	return &Table{devices: make(map[uint32]*Device)}
}

// Register adds a device to the table. limiter may be nil for unlimited
// simulated throughput.
func (t *Table) Register(id uint32, typ Type, subtype Subtype, parentID uint32, drv Driver, limiter *rate.Limiter) *Device {
	d := &Device{
		ID:       id,
		Type:     typ,
		Subtype:  subtype,
		ParentID: parentID,
		Driver:   drv,
		sem:      semaphore.NewWeighted(1),
		limiter:  limiter,
	}
	t.mu.Lock()
	t.devices[id] = d
	t.mu.Unlock()
	return d
}

// Get looks up a device by id.
func (t *Table) Get(id uint32) (*Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[id]
	if !ok {
		return nil, fmt.Errorf("blockdev: no such device %d", id)
	}
	return d, nil
}

// parent resolves a (possibly partition) device to its physical parent,
// A device with ParentID == 0 is its own parent.
func (t *Table) parent(d *Device) (*Device, error) {
	if d.ParentID == 0 {
		return d, nil
	}
	return t.Get(d.ParentID)
}

func sortInsert(pending []*Request, r *Request) []*Request {
	i := sort.Search(len(pending), func(i int) bool {
		return pending[i].StartSector >= r.StartSector
	})
	pending = append(pending, nil)
	copy(pending[i+1:], pending[i:])
	pending[i] = r
	return pending
}
