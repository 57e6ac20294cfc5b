package minixfs

import (
	"context"
	"encoding/binary"
)

// Bmap translates a logical file block number to a physical zone number,
// walking up to two levels of indirection. With create=false, a hole
// (an unallocated logical block) returns zone 0; callers reading a hole
// must zero-fill the user buffer themselves. With create=true, missing
// intermediate or leaf zones are allocated and their parent buffers marked
// dirty.
func (fs *FS) Bmap(ctx context.Context, in *Inode, logical uint32, create bool) (uint32, error) {
	sb, err := fs.inodes.SuperBlockFor(in.Device)
	if err != nil {
		return 0, err
	}

	if logical < DirectZones {
		if in.Disk.Zones[logical] == 0 && create {
			z, err := fs.allocZone(ctx, sb, in, func(v uint32) { in.Disk.Zones[logical] = v })
			if err != nil {
				return 0, err
			}
			return z, nil
		}
		return in.Disk.Zones[logical], nil
	}

	logical -= DirectZones
	if logical < PointersPerZone {
		return fs.bmapIndirect(ctx, sb, in, IndirectZone, logical, create)
	}

	logical -= PointersPerZone
	if logical >= PointersPerZone*PointersPerZone {
		return 0, errBlockTooLarge
	}
	outer := logical / PointersPerZone
	inner := logical % PointersPerZone
	return fs.bmapDoubleIndirect(ctx, sb, in, outer, inner, create)
}

var errBlockTooLarge = fsError("minixfs: logical block exceeds maximum file size")

type fsError string

func (e fsError) Error() string { return string(e) }

// allocZone balloc's a fresh zone, stores it via set, and marks the inode
// dirty.
func (fs *FS) allocZone(ctx context.Context, sb *SuperBlock, in *Inode, set func(uint32)) (uint32, error) {
	z, err := sb.balloc(fs.cache)
	if err != nil {
		return 0, err
	}
	set(z)
	fs.inodes.MarkDirty(in)
	return z, nil
}

func (fs *FS) bmapIndirect(ctx context.Context, sb *SuperBlock, in *Inode, slot int, index uint32, create bool) (uint32, error) {
	indirectZone := in.Disk.Zones[slot]
	if indirectZone == 0 {
		if !create {
			return 0, nil
		}
		z, err := sb.balloc(fs.cache)
		if err != nil {
			return 0, err
		}
		if err := zeroZone(ctx, fs.cache, in.Device, z); err != nil {
			return 0, err
		}
		in.Disk.Zones[slot] = z
		fs.inodes.MarkDirty(in)
		indirectZone = z
	}

	buf, err := fs.cache.Read(ctx, in.Device, int(indirectZone))
	if err != nil {
		return 0, err
	}
	defer fs.cache.Release(buf)

	off := index * 2
	zone := uint32(binary.LittleEndian.Uint16(buf.Data[off : off+2]))
	if zone == 0 && create {
		z, err := sb.balloc(fs.cache)
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint16(buf.Data[off:off+2], uint16(z))
		fs.cache.MarkDirty(buf, true)
		zone = z
	}
	return zone, nil
}

func (fs *FS) bmapDoubleIndirect(ctx context.Context, sb *SuperBlock, in *Inode, outer, inner uint32, create bool) (uint32, error) {
	dzone := in.Disk.Zones[DoubleIndirZone]
	if dzone == 0 {
		if !create {
			return 0, nil
		}
		z, err := sb.balloc(fs.cache)
		if err != nil {
			return 0, err
		}
		if err := zeroZone(ctx, fs.cache, in.Device, z); err != nil {
			return 0, err
		}
		in.Disk.Zones[DoubleIndirZone] = z
		fs.inodes.MarkDirty(in)
		dzone = z
	}

	outerBuf, err := fs.cache.Read(ctx, in.Device, int(dzone))
	if err != nil {
		return 0, err
	}
	defer fs.cache.Release(outerBuf)

	outerOff := outer * 2
	innerZone := uint32(binary.LittleEndian.Uint16(outerBuf.Data[outerOff : outerOff+2]))
	if innerZone == 0 {
		if !create {
			return 0, nil
		}
		z, err := sb.balloc(fs.cache)
		if err != nil {
			return 0, err
		}
		if err := zeroZone(ctx, fs.cache, in.Device, z); err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint16(outerBuf.Data[outerOff:outerOff+2], uint16(z))
		fs.cache.MarkDirty(outerBuf, true)
		innerZone = z
	}

	innerBuf, err := fs.cache.Read(ctx, in.Device, int(innerZone))
	if err != nil {
		return 0, err
	}
	defer fs.cache.Release(innerBuf)

	innerOff := inner * 2
	zone := uint32(binary.LittleEndian.Uint16(innerBuf.Data[innerOff : innerOff+2]))
	if zone == 0 && create {
		z, err := sb.balloc(fs.cache)
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint16(innerBuf.Data[innerOff:innerOff+2], uint16(z))
		fs.cache.MarkDirty(innerBuf, true)
		zone = z
	}
	return zone, nil
}
