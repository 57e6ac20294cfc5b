package minixfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

// SuperBlock is the in-memory, per-mounted-device super-block: the
// decoded on-disk descriptor (held inside its block-1 buffer), the
// inode-map/zone-map buffers, the root inode, and the mount-point inode if
// this file system was mounted onto another one.
type SuperBlock struct {
	Device uint32
	Disk   *SuperBlockDisk

	sbBuf   *buffercache.Buffer
	imaps   []*buffercache.Buffer
	zmaps   []*buffercache.Buffer

	mu          sync.Mutex
	root        *Inode
	mountPoint  *Inode // nil unless mounted onto another fs
	mountedDev  uint32 // 0 unless some other fs is mounted onto this one's mountPoint
	inUse       []*Inode
	refCount    int
}

// ReadSuperBlock loads and validates the super-block at block 1 of dev.
func ReadSuperBlock(ctx context.Context, cache *buffercache.Cache, dev uint32) (*SuperBlock, error) {
	buf, err := cache.Read(ctx, dev, 1)
	if err != nil {
		return nil, fmt.Errorf("minixfs: reading super-block: %w", err)
	}
	disk, err := decodeSuperBlock(buf.Data[:superBlockDiskSize])
	if err != nil {
		cache.Release(buf)
		return nil, err
	}

	sb := &SuperBlock{Device: dev, Disk: disk, sbBuf: buf}

	base := uint32(2)
	for i := uint32(0); i < disk.IMapBlocks; i++ {
		b, err := cache.Read(ctx, dev, int(base+i))
		if err != nil {
			return nil, err
		}
		sb.imaps = append(sb.imaps, b)
	}
	base += disk.IMapBlocks
	for i := uint32(0); i < disk.ZMapBlocks; i++ {
		b, err := cache.Read(ctx, dev, int(base+i))
		if err != nil {
			return nil, err
		}
		sb.zmaps = append(sb.zmaps, b)
	}
	return sb, nil
}

// Close releases every buffer this super-block pins.
func (sb *SuperBlock) Close(cache *buffercache.Cache) {
	for _, b := range sb.imaps {
		cache.Release(b)
	}
	for _, b := range sb.zmaps {
		cache.Release(b)
	}
	cache.Release(sb.sbBuf)
}

// inodeBlockAndOffset locates the block and byte offset of inode nr within
// the inode table, which begins right after the maps.
func (sb *SuperBlock) inodeBlockAndOffset(nr uint32) (block int, offset int) {
	firstInodeBlock := 2 + int(sb.Disk.IMapBlocks) + int(sb.Disk.ZMapBlocks)
	idx := int(nr - 1)
	return firstInodeBlock + idx/InodesPerBlock, (idx % InodesPerBlock) * InodeSize
}
