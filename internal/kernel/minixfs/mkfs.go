package minixfs

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

// Mkfs constructs a fresh MINIX-v1 super-block on dev, sized for a device
// of totalBlocks 1 KiB blocks: icount inodes (default 1/3 of totalBlocks
// when icount is 0), the inode-map and zone-map blocks needed to cover
// them, every "past the end" bit beyond the legal range pre-marked used,
// inode 1 pre-allocated as the root directory with "." and ".." written
// into its first data block.
func Mkfs(ctx context.Context, cache *buffercache.Cache, dev uint32, totalBlocks int, icount uint32) error {
	if icount == 0 {
		icount = uint32(totalBlocks / 3)
	}
	if icount == 0 {
		return fmt.Errorf("minixfs: mkfs: device too small")
	}

	imapBlocks := ceilDiv(icount+1, bitsPerBlock)
	// Zone numbering covers the whole device, so the zone bitmap must
	// address every block, not just data blocks.
	nzones := uint32(totalBlocks)
	zmapBlocks := ceilDiv(nzones, bitsPerBlock)
	firstData := 2 + imapBlocks + zmapBlocks + ceilDiv(icount, InodesPerBlock)

	disk := &SuperBlockDisk{
		NInodes:     icount,
		IMapBlocks:  imapBlocks,
		ZMapBlocks:  zmapBlocks,
		FirstData:   firstData,
		LogZoneSize: 0,
		MaxSize:     uint32((DirectZones + PointersPerZone + PointersPerZone*PointersPerZone) * BlockSize),
		NZones:      nzones,
		Magic:       Magic,
	}

	sbBuf, err := cache.Zero(ctx, dev, 1)
	if err != nil {
		return err
	}
	disk.encode(sbBuf.Data[:superBlockDiskSize])
	cache.MarkDirty(sbBuf, true)
	cache.Release(sbBuf)

	imaps, err := zeroMapBlocks(ctx, cache, dev, 2, imapBlocks)
	if err != nil {
		return err
	}
	zmaps, err := zeroMapBlocks(ctx, cache, dev, 2+imapBlocks, zmapBlocks)
	if err != nil {
		return err
	}

	// Bit 0 of each map is permanently reserved (there is no inode/zone 0).
	setBit(cache, imaps, 0)
	setBit(cache, zmaps, 0)
	// Inode 1 (the root directory) is pre-allocated here, not through ialloc.
	setBit(cache, imaps, RootInode)
	for b := icount + 1; b < imapBlocks*bitsPerBlock; b++ {
		setBit(cache, imaps, b)
	}
	for b := nzones; b < zmapBlocks*bitsPerBlock; b++ {
		setBit(cache, zmaps, b)
	}
	// Zones below firstData (boot, super, maps, inode table) are
	// permanently reserved so the data-zone scanner never returns them.
	for b := uint32(0); b < firstData; b++ {
		setBit(cache, zmaps, b)
	}
	// The root directory's one data block is zone firstData itself,
	// consumed directly here rather than through balloc.
	setBit(cache, zmaps, firstData)

	for _, b := range imaps {
		cache.Release(b)
	}
	for _, b := range zmaps {
		cache.Release(b)
	}

	return writeRootDirectory(ctx, cache, dev, disk, firstData)
}

func ceilDiv(a, b uint32) uint32 {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func zeroMapBlocks(ctx context.Context, cache *buffercache.Cache, dev uint32, start, count uint32) ([]*buffercache.Buffer, error) {
	var out []*buffercache.Buffer
	for i := uint32(0); i < count; i++ {
		b, err := cache.Zero(ctx, dev, int(start+i))
		if err != nil {
			return nil, err
		}
		cache.MarkDirty(b, true)
		out = append(out, b)
	}
	return out, nil
}

// writeRootDirectory pre-allocates inode 1 as the root directory and
// writes "." and ".." into its first (and only) data block.
func writeRootDirectory(ctx context.Context, cache *buffercache.Cache, dev uint32, disk *SuperBlockDisk, firstData uint32) error {
	rootZone := firstData

	dataBuf, err := cache.Zero(ctx, dev, int(rootZone))
	if err != nil {
		return err
	}
	dot := DirEntryDisk{Inode: RootInode, Name: "."}
	dotdot := DirEntryDisk{Inode: RootInode, Name: ".."}
	dot.encode(dataBuf.Data[0:DirEntrySize])
	dotdot.encode(dataBuf.Data[DirEntrySize : 2*DirEntrySize])
	cache.MarkDirty(dataBuf, true)
	cache.Release(dataBuf)

	firstInodeBlock := 2 + disk.IMapBlocks + disk.ZMapBlocks
	inodeBuf, err := cache.Zero(ctx, dev, int(firstInodeBlock))
	if err != nil {
		return err
	}
	root := InodeDisk{
		Mode:   IFDIR | 0755,
		NLinks: 2,
		Size:   2 * DirEntrySize,
	}
	root.Zones[0] = rootZone
	root.encode(inodeBuf.Data[(RootInode-1)*InodeSize : RootInode*InodeSize])
	cache.MarkDirty(inodeBuf, true)
	cache.Release(inodeBuf)

	return nil
}
