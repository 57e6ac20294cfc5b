package minixfs

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

// FsckReport is the outcome of a consistency walk: every inconsistency
// found, grouped the way fsck.c traditionally reports them. An empty
// report means the volume is internally consistent.
type FsckReport struct {
	Device              uint32
	LeakedInodes        []uint32 // bitmap marks used, but NLinks == 0
	UnmarkedLiveInodes  []uint32 // NLinks > 0, but bitmap marks free
	LeakedZones         []uint32 // bitmap marks used, but no live inode references it
	DoubleAllocatedZones []uint32 // referenced by more than one inode (or twice by one)
	DanglingZoneRefs    []uint32 // referenced by a live inode, but bitmap marks free
}

// OK reports whether the walk found zero inconsistencies.
func (r FsckReport) OK() bool {
	return len(r.LeakedInodes) == 0 && len(r.UnmarkedLiveInodes) == 0 &&
		len(r.LeakedZones) == 0 && len(r.DoubleAllocatedZones) == 0 &&
		len(r.DanglingZoneRefs) == 0
}

// Fsck walks dev's inode and zone bitmaps against the inodes and zones
// actually reachable from the inode table, cross-checking the two the way
// §8's testable properties require: every allocated inode/zone bit has
// exactly one live referent, and every live referent's bit is set.
// It opens its own super-block handle (independent of any mounted Task)
// and does not modify the volume.
func Fsck(ctx context.Context, cache *buffercache.Cache, dev uint32) (FsckReport, error) {
	sb, err := ReadSuperBlock(ctx, cache, dev)
	if err != nil {
		return FsckReport{}, fmt.Errorf("minixfs: fsck: %w", err)
	}
	defer sb.Close(cache)

	report := FsckReport{Device: dev}
	zoneRefs := make(map[uint32]int)

	for nr := uint32(1); nr <= sb.Disk.NInodes; nr++ {
		marked := bitAt(sb.imaps, nr)

		block, off := sb.inodeBlockAndOffset(nr)
		buf, err := cache.Read(ctx, dev, block)
		if err != nil {
			return FsckReport{}, fmt.Errorf("minixfs: fsck: reading inode %d: %w", nr, err)
		}
		d := decodeInode(buf.Data[off : off+InodeSize])
		cache.Release(buf)

		live := d.NLinks > 0
		switch {
		case marked && !live:
			report.LeakedInodes = append(report.LeakedInodes, nr)
		case !marked && live:
			report.UnmarkedLiveInodes = append(report.UnmarkedLiveInodes, nr)
		}
		if !live {
			continue
		}

		zones, err := fsckCollectZones(ctx, cache, dev, d)
		if err != nil {
			return FsckReport{}, fmt.Errorf("minixfs: fsck: walking inode %d zones: %w", nr, err)
		}
		for _, z := range zones {
			zoneRefs[z]++
		}
	}

	for z, count := range zoneRefs {
		if !bitAt(sb.zmaps, z) {
			report.DanglingZoneRefs = append(report.DanglingZoneRefs, z)
		}
		if count > 1 {
			report.DoubleAllocatedZones = append(report.DoubleAllocatedZones, z)
		}
	}
	for z := sb.Disk.FirstData; z < sb.Disk.NZones; z++ {
		if bitAt(sb.zmaps, z) && zoneRefs[z] == 0 {
			report.LeakedZones = append(report.LeakedZones, z)
		}
	}

	return report, nil
}

// fsckCollectZones enumerates every zone number a raw inode descriptor
// references, direct and indirect, mirroring Bmap's own traversal but
// read-only and without a live *Inode/Task.
func fsckCollectZones(ctx context.Context, cache *buffercache.Cache, dev uint32, d *InodeDisk) ([]uint32, error) {
	var zones []uint32
	for i := 0; i < DirectZones; i++ {
		if d.Zones[i] != 0 {
			zones = append(zones, d.Zones[i])
		}
	}

	if d.Zones[IndirectZone] != 0 {
		zones = append(zones, d.Zones[IndirectZone])
		ptrs, err := fsckReadPointers(ctx, cache, dev, d.Zones[IndirectZone])
		if err != nil {
			return nil, err
		}
		for _, z := range ptrs {
			if z != 0 {
				zones = append(zones, z)
			}
		}
	}

	if d.Zones[DoubleIndirZone] != 0 {
		zones = append(zones, d.Zones[DoubleIndirZone])
		outer, err := fsckReadPointers(ctx, cache, dev, d.Zones[DoubleIndirZone])
		if err != nil {
			return nil, err
		}
		for _, mid := range outer {
			if mid == 0 {
				continue
			}
			zones = append(zones, mid)
			inner, err := fsckReadPointers(ctx, cache, dev, mid)
			if err != nil {
				return nil, err
			}
			for _, z := range inner {
				if z != 0 {
					zones = append(zones, z)
				}
			}
		}
	}
	return zones, nil
}

func fsckReadPointers(ctx context.Context, cache *buffercache.Cache, dev uint32, zone uint32) ([]uint32, error) {
	buf, err := cache.Read(ctx, dev, int(zone))
	if err != nil {
		return nil, err
	}
	defer cache.Release(buf)
	ptrs := make([]uint32, PointersPerZone)
	for i := range ptrs {
		ptrs[i] = uint32(binary.LittleEndian.Uint16(buf.Data[i*2 : i*2+2]))
	}
	return ptrs, nil
}
