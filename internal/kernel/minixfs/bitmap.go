package minixfs

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

const bitsPerBlock = BlockSize * 8

// bitAt/setBit/clearBit address a bit within a slice of map blocks, one
// buffer per BlockSize*8 bits, matching the inode-map and zone-map layout.
func bitAt(maps []*buffercache.Buffer, bit uint32) bool {
	blk, off := bit/bitsPerBlock, bit%bitsPerBlock
	return maps[blk].Data[off/8]&(1<<(off%8)) != 0
}

func setBit(cache *buffercache.Cache, maps []*buffercache.Buffer, bit uint32) {
	blk, off := bit/bitsPerBlock, bit%bitsPerBlock
	maps[blk].Data[off/8] |= 1 << (off % 8)
	cache.MarkDirty(maps[blk], true)
}

func clearBit(cache *buffercache.Cache, maps []*buffercache.Buffer, bit uint32) {
	blk, off := bit/bitsPerBlock, bit%bitsPerBlock
	maps[blk].Data[off/8] &^= 1 << (off % 8)
	cache.MarkDirty(maps[blk], true)
}

// findZeroBit scans bits [from, limit) for the first clear bit.
func findZeroBit(maps []*buffercache.Buffer, from, limit uint32) (uint32, bool) {
	for b := from; b < limit; b++ {
		if !bitAt(maps, b) {
			return b, true
		}
	}
	return 0, false
}

// ialloc allocates the first free inode number, marking the bitmap dirty.
// Bit 0 is permanently reserved (there is no inode 0).
func (sb *SuperBlock) ialloc(cache *buffercache.Cache) (uint32, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bit, ok := findZeroBit(sb.imaps, 1, sb.Disk.NInodes+1)
	if !ok {
		return 0, fmt.Errorf("minixfs: ialloc: no free inodes on device %d", sb.Device)
	}
	setBit(cache, sb.imaps, bit)
	return bit, nil
}

// ifree clears nr's bit in the inode-map.
func (sb *SuperBlock) ifree(cache *buffercache.Cache, nr uint32) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	clearBit(cache, sb.imaps, nr)
}

// balloc allocates the first free data zone. Zones below FirstData are
// reserved for boot/super/maps/inode-table and are marked used once at
// mkfs time so the scanner never returns them.
func (sb *SuperBlock) balloc(cache *buffercache.Cache) (uint32, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bit, ok := findZeroBit(sb.zmaps, sb.Disk.FirstData, sb.Disk.NZones)
	if !ok {
		return 0, fmt.Errorf("minixfs: balloc: device %d full", sb.Device)
	}
	setBit(cache, sb.zmaps, bit)
	return bit, nil
}

// bfree clears zone's bit in the zone-map.
func (sb *SuperBlock) bfree(cache *buffercache.Cache, zone uint32) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	clearBit(cache, sb.zmaps, zone)
}

// zeroZone zero-fills a newly allocated zone and marks it dirty, without
// reading its (irrelevant) prior contents from disk.
func zeroZone(ctx context.Context, cache *buffercache.Cache, dev uint32, zone uint32) error {
	b, err := cache.Zero(ctx, dev, int(zone))
	if err != nil {
		return err
	}
	cache.MarkDirty(b, true)
	cache.Release(b)
	return nil
}
