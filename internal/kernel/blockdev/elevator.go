package blockdev

import (
	"context"
	"sort"

	"github.com/hjw1766/XJOS/internal/kernel/kernsync"
)

// Submit implements the request() contract: resolve to the
// parent device, translate the logical block to an absolute sector,
// sort-insert into the elevator queue, block until it is this request's
// turn, invoke the driver synchronously, then hand off to whichever
// request the elevator picks next.
func (t *Table) Submit(ctx context.Context, devID uint32, logicalBlock, blockCount int, buf []byte, dir Direction) error {
	dev, err := t.Get(devID)
	if err != nil {
		return err
	}
	parent, err := t.parent(dev)
	if err != nil {
		return err
	}

	offsetSectors, err := dev.Driver.Ioctl(CmdSectorStart)
	if err != nil {
		return err
	}

	const blockSectors = 2 // 1 KiB blocks, 512 B sectors
	r := &Request{
		Device:      parent,
		Dir:         dir,
		StartSector: offsetSectors + logicalBlock*blockSectors,
		Count:       blockCount * blockSectors,
		Buf:         buf,
		gate:        kernsync.NewGate(),
	}

	parent.mu.Lock()
	myTurn := parent.running == nil && len(parent.pending) == 0
	parent.pending = sortInsert(parent.pending, r)
	if myTurn {
		// I am the only request; take myself off the pending list and run.
		parent.pending = parent.pending[:0]
		parent.running = r
	}
	parent.mu.Unlock()

	if !myTurn {
		r.gate.Wait()
	}

	if err := t.runRequest(ctx, parent, r); err != nil {
		r.err = err
	}

	t.advance(parent, r)
	return r.err
}

func (t *Table) runRequest(ctx context.Context, dev *Device, r *Request) error {
	if err := dev.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer dev.sem.Release(1)

	if dev.limiter != nil {
		if err := dev.limiter.WaitN(ctx, r.Count); err != nil {
			return err
		}
	}

	if r.Dir == Read {
		return dev.Driver.ReadSectors(r.StartSector, r.Count, r.Buf)
	}
	return dev.Driver.WriteSectors(r.StartSector, r.Count, r.Buf)
}

// advance decides the next request
// in elevator order, remove it from the pending list, mark it running, and
// wake its waiting task.
func (t *Table) advance(dev *Device, completed *Request) {
	dev.mu.Lock()
	dev.lastSector = completed.StartSector
	dev.running = nil

	next, idx := pickNext(dev.pending, dev.lastSector, dev.direction)
	if next == nil {
		dev.mu.Unlock()
		return
	}
	dev.pending = append(dev.pending[:idx], dev.pending[idx+1:]...)
	dev.running = next
	dev.direction = nextDirection(dev.pending, dev.lastSector, dev.direction, idx, next)
	dev.mu.Unlock()

	next.gate.Open()
}

// pickNext implements the C-SCAN-with-reversal rule:
// continue in the current direction unless at a list end, in which case
// reverse. pending is kept sorted ascending by StartSector at all times.
func pickNext(pending []*Request, lastSector int, dir Direction) (*Request, int) {
	if len(pending) == 0 {
		return nil, -1
	}
	if dir == SweepUp {
		idx := sort.Search(len(pending), func(i int) bool {
			return pending[i].StartSector >= lastSector
		})
		if idx < len(pending) {
			return pending[idx], idx
		}
		// No request ahead of us going up: reverse, take the largest.
		last := len(pending) - 1
		return pending[last], last
	}

	// SweepDown: take the largest request at or below lastSector.
	idx := sort.Search(len(pending), func(i int) bool {
		return pending[i].StartSector > lastSector
	}) - 1
	if idx >= 0 {
		return pending[idx], idx
	}
	return pending[0], 0
}

// nextDirection returns the sweep direction after picking `chosen`: the
// opposite of dir if the pick amounted to a reversal, dir otherwise.
func nextDirection(remaining []*Request, lastSector int, dir Direction, idx int, chosen *Request) Direction {
	if dir == SweepUp && chosen.StartSector < lastSector {
		return SweepDown
	}
	if dir == SweepDown && chosen.StartSector > lastSector {
		return SweepUp
	}
	return dir
}
