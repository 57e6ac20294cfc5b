package minixfs

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

func le16(b []byte) uint32 { return uint32(binary.LittleEndian.Uint16(b)) }

// Read implements read(inode, buf, len, off): clamp to file size, iterate
// block by block, filling holes with zeros, update atime, and return the
// number of bytes produced.
func (fs *FS) Read(ctx context.Context, in *Inode, buf []byte, off uint32) (int, error) {
	if off >= in.Disk.Size {
		return 0, nil
	}
	length := len(buf)
	if uint32(length) > in.Disk.Size-off {
		length = int(in.Disk.Size - off)
	}

	produced := 0
	for produced < length {
		logical := (off + uint32(produced)) / BlockSize
		inBlock := (off + uint32(produced)) % BlockSize
		n := BlockSize - int(inBlock)
		if n > length-produced {
			n = length - produced
		}

		zone, err := fs.Bmap(ctx, in, logical, false)
		if err != nil {
			return produced, err
		}
		if zone == 0 {
			for i := 0; i < n; i++ {
				buf[produced+i] = 0
			}
		} else {
			b, err := fs.cache.Read(ctx, in.Device, int(zone))
			if err != nil {
				return produced, err
			}
			copy(buf[produced:produced+n], b.Data[inBlock:int(inBlock)+n])
			fs.cache.Release(b)
		}
		produced += n
	}

	in.atime = now()
	return produced, nil
}

// Write implements write(inode, buf, len, off): iterate block by block
// with create=true, read-modify-write through the buffer cache, extend
// the size if off+produced passes it, update mtime, mark the inode dirty.
func (fs *FS) Write(ctx context.Context, in *Inode, buf []byte, off uint32) (int, error) {
	consumed := 0
	for consumed < len(buf) {
		logical := (off + uint32(consumed)) / BlockSize
		inBlock := (off + uint32(consumed)) % BlockSize
		n := BlockSize - int(inBlock)
		if n > len(buf)-consumed {
			n = len(buf) - consumed
		}

		zone, err := fs.Bmap(ctx, in, logical, true)
		if err != nil {
			return consumed, err
		}

		wb, err := fs.writeBlock(ctx, in.Device, zone, inBlock, n)
		if err != nil {
			return consumed, err
		}
		copy(wb.Data[inBlock:int(inBlock)+n], buf[consumed:consumed+n])
		fs.cache.MarkDirty(wb, true)
		fs.cache.Release(wb)

		consumed += n
	}

	newEnd := off + uint32(consumed)
	if newEnd > in.Disk.Size {
		in.Disk.Size = newEnd
	}
	in.atime = now()
	in.Disk.MTime = uint32(now().Unix())
	fs.inodes.MarkDirty(in)
	return consumed, nil
}

// writeBlock reads the destination block through the cache so a partial
// write preserves the bytes it isn't touching (read-modify-write). A
// write that covers a whole block doesn't need its prior contents, so it
// zero-fills instead of reading stale data off disk.
func (fs *FS) writeBlock(ctx context.Context, dev uint32, zone uint32, inBlock, n int) (*buffercache.Buffer, error) {
	if inBlock == 0 && n == BlockSize {
		return fs.cache.Zero(ctx, dev, int(zone))
	}
	return fs.cache.Read(ctx, dev, int(zone))
}

// Truncate implements truncate(inode): recursively free zones[0..6], then
// the single-indirect tree through zones[7], then the double-indirect
// tree through zones[8]; zero the zone array, reset size, mark dirty.
func (fs *FS) Truncate(ctx context.Context, in *Inode) error {
	sb, err := fs.inodes.SuperBlockFor(in.Device)
	if err != nil {
		return err
	}

	for i := 0; i < DirectZones; i++ {
		if z := in.Disk.Zones[i]; z != 0 {
			sb.bfree(fs.cache, z)
		}
	}
	if z := in.Disk.Zones[IndirectZone]; z != 0 {
		fs.freeIndirectBlock(ctx, sb, in.Device, z)
		sb.bfree(fs.cache, z)
	}
	if z := in.Disk.Zones[DoubleIndirZone]; z != 0 {
		fs.freeDoubleIndirectBlock(ctx, sb, in.Device, z)
		sb.bfree(fs.cache, z)
	}

	in.Disk.Zones = [NumZones]uint32{}
	in.Disk.Size = 0
	fs.inodes.MarkDirty(in)
	return nil
}

func (fs *FS) freeIndirectBlock(ctx context.Context, sb *SuperBlock, dev uint32, zone uint32) {
	b, err := fs.cache.Read(ctx, dev, int(zone))
	if err != nil {
		return
	}
	defer fs.cache.Release(b)
	for i := 0; i < PointersPerZone; i++ {
		off := i * 2
		z := le16(b.Data[off : off+2])
		if z != 0 {
			sb.bfree(fs.cache, z)
		}
	}
}

func (fs *FS) freeDoubleIndirectBlock(ctx context.Context, sb *SuperBlock, dev uint32, zone uint32) {
	b, err := fs.cache.Read(ctx, dev, int(zone))
	if err != nil {
		return
	}
	defer fs.cache.Release(b)
	for i := 0; i < PointersPerZone; i++ {
		off := i * 2
		inner := le16(b.Data[off : off+2])
		if inner != 0 {
			fs.freeIndirectBlock(ctx, sb, dev, inner)
			sb.bfree(fs.cache, inner)
		}
	}
}

func now() time.Time { return clockSource() }

// clockSource is overridden in tests; production code leaves it as
// time.Now.
var clockSource = time.Now
