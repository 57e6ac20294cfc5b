// Package minixfs implements a MINIX-v1-compatible file system: on-disk
// layout, inode and dentry caches, bitmap allocators, block mapping,
// directory operations, mount table, file descriptors, pipes, and mkfs.
package minixfs

import (
	"encoding/binary"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

// BlockSize is the file system's block size; it matches the buffer
// cache's unit exactly, so every block-level operation here works with
// whole buffercache.Buffer values.
const BlockSize = buffercache.BlockSize

// Magic is the MINIX-v1 super-block signature.
const Magic = 0x137F

// InodeSize is the on-disk size of one inode descriptor.
const InodeSize = 32

// InodesPerBlock is how many 32-byte descriptors fit in one 1 KiB block.
const InodesPerBlock = BlockSize / InodeSize

// DirEntrySize is the on-disk size of one directory entry: a 2-byte inode
// number followed by a 14-byte, not-necessarily-NUL-terminated name.
const DirEntrySize = 16

// NameMax is the longest name a directory entry can hold.
const NameMax = 14

// NumZones zone slots per inode: zones[0..6] direct, zones[7] single-indirect,
// zones[8] double-indirect.
const (
	NumZones        = 9
	DirectZones     = 7
	IndirectZone    = 7
	DoubleIndirZone = 8
)

// PointersPerZone is how many 16-bit zone numbers fit in one indirect
// block, matching the on-disk 2-byte zone-pointer width (the same width
// as an inode's direct zones[] entries).
const PointersPerZone = BlockSize / 2

// Mode bits, matching the traditional MINIX/Unix encoding this format
// inherits.
const (
	IFMT   = 0170000
	IFDIR  = 0040000
	IFCHR  = 0020000
	IFBLK  = 0060000
	IFREG  = 0100000
	IFIFO  = 0010000
	IRWXU  = 0000700
	IRWXG  = 0000070
	IRWXO  = 0000007
	IXUSR  = 0000100
)

// RootInode is the well-known inode number of a file system's root
// directory.
const RootInode = 1

// SuperBlockDisk is the on-disk super-block, stored in block 1. Fields
// are widened to uint32 in memory for arithmetic convenience, but encode
// to the MINIX-v1 wire widths: every field is 2 bytes except max_size
// (4 bytes).
type SuperBlockDisk struct {
	NInodes     uint32
	NZones      uint32
	IMapBlocks  uint32
	ZMapBlocks  uint32
	FirstData   uint32
	LogZoneSize uint32
	MaxSize     uint32
	Magic       uint32
}

const superBlockDiskSize = 18

func (s *SuperBlockDisk) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(s.NInodes))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(s.NZones))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(s.IMapBlocks))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(s.ZMapBlocks))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(s.FirstData))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(s.LogZoneSize))
	binary.LittleEndian.PutUint32(buf[12:16], s.MaxSize)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(s.Magic))
}

func decodeSuperBlock(buf []byte) (*SuperBlockDisk, error) {
	s := &SuperBlockDisk{
		NInodes:     uint32(binary.LittleEndian.Uint16(buf[0:2])),
		NZones:      uint32(binary.LittleEndian.Uint16(buf[2:4])),
		IMapBlocks:  uint32(binary.LittleEndian.Uint16(buf[4:6])),
		ZMapBlocks:  uint32(binary.LittleEndian.Uint16(buf[6:8])),
		FirstData:   uint32(binary.LittleEndian.Uint16(buf[8:10])),
		LogZoneSize: uint32(binary.LittleEndian.Uint16(buf[10:12])),
		MaxSize:     binary.LittleEndian.Uint32(buf[12:16]),
		Magic:       uint32(binary.LittleEndian.Uint16(buf[16:18])),
	}
	if s.Magic != Magic {
		return nil, fmt.Errorf("minixfs: bad super-block magic %#x", s.Magic)
	}
	return s, nil
}

// InodeDisk is the on-disk 32-byte inode descriptor.
type InodeDisk struct {
	Mode   uint16
	UID    uint16
	Size   uint32
	MTime  uint32
	GID    uint8
	NLinks uint8
	Zones  [NumZones]uint32
}

func (d *InodeDisk) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], d.Mode)
	binary.LittleEndian.PutUint16(buf[2:4], d.UID)
	binary.LittleEndian.PutUint32(buf[4:8], d.Size)
	binary.LittleEndian.PutUint32(buf[8:12], d.MTime)
	buf[12] = d.GID
	buf[13] = d.NLinks
	for i, z := range d.Zones {
		binary.LittleEndian.PutUint16(buf[14+i*2:16+i*2], uint16(z))
	}
}

func decodeInode(buf []byte) *InodeDisk {
	d := &InodeDisk{
		Mode:   binary.LittleEndian.Uint16(buf[0:2]),
		UID:    binary.LittleEndian.Uint16(buf[2:4]),
		Size:   binary.LittleEndian.Uint32(buf[4:8]),
		MTime:  binary.LittleEndian.Uint32(buf[8:12]),
		GID:    buf[12],
		NLinks: buf[13],
	}
	for i := range d.Zones {
		d.Zones[i] = uint32(binary.LittleEndian.Uint16(buf[14+i*2 : 16+i*2]))
	}
	return d
}

// DirEntryDisk is one 16-byte directory entry.
type DirEntryDisk struct {
	Inode uint16
	Name  string // at most NameMax bytes
}

func (e *DirEntryDisk) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], e.Inode)
	n := copy(buf[2:2+NameMax], e.Name)
	for i := n; i < NameMax; i++ {
		buf[2+i] = 0
	}
}

func decodeDirEntry(buf []byte) DirEntryDisk {
	inode := binary.LittleEndian.Uint16(buf[0:2])
	end := 2
	for end < 2+NameMax && buf[end] != 0 {
		end++
	}
	return DirEntryDisk{Inode: inode, Name: string(buf[2:end])}
}
