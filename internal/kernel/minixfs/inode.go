package minixfs

import (
	"context"
	"fmt"
	"time"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

// Inode is the in-memory cached descriptor for one on-disk inode: the
// decoded fields (kept in sync with the pinned inode-table buffer), plus
// cache bookkeeping (refcount, mount-point state, list membership).
type Inode struct {
	Device uint32
	Number uint32
	Disk   InodeDisk

	buf       *buffercache.Buffer // pinned inode-table block
	bufOffset int

	refCount   int
	mountedDev uint32 // non-zero: this inode is a mount point for that device
	atime      time.Time
	pipe       bool
	pipeState  *pipe
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Disk.Mode&IFMT == IFDIR }

// IsMountPoint reports whether another device is mounted onto this inode.
func (in *Inode) IsMountPoint() bool { return in.mountedDev != 0 }

// Cache is the per-kernel inode cache: every active inode of every mounted
// device, keyed by (device, inode number) and shared across every open
// file and every cached directory entry.
type Cache struct {
	cache  *buffercache.Cache
	supers map[uint32]*SuperBlock
	byKey  map[inodeKey]*Inode
}

type inodeKey struct {
	dev uint32
	nr  uint32
}

// NewCache creates an inode cache over the given buffer cache.
func NewCache(bc *buffercache.Cache) *Cache {
	return &Cache{
		cache:  bc,
		supers: make(map[uint32]*SuperBlock),
		byKey:  make(map[inodeKey]*Inode),
	}
}

// Mount registers dev's super-block as active, so inodes on it can be
// cached and resolved.
func (c *Cache) Mount(sb *SuperBlock) {
	c.supers[sb.Device] = sb
}

// SuperBlockFor returns the active super-block for dev.
func (c *Cache) SuperBlockFor(dev uint32) (*SuperBlock, error) {
	sb, ok := c.supers[dev]
	if !ok {
		return nil, fmt.Errorf("minixfs: device %d is not mounted", dev)
	}
	return sb, nil
}

// Iget implements iget(dev, nr): search the active list for a hit,
// otherwise load the inode-table block through the buffer cache. Mount
// traversal means a request for a mount-point inode instead returns the
// mounted file system's root.
func (c *Cache) Iget(ctx context.Context, dev uint32, nr uint32) (*Inode, error) {
	in, err := c.igetRaw(ctx, dev, nr)
	if err != nil {
		return nil, err
	}
	if in.IsMountPoint() {
		root, err := c.igetRaw(ctx, in.mountedDev, RootInode)
		if err != nil {
			c.Iput(in)
			return nil, err
		}
		c.Iput(in)
		return root, nil
	}
	return in, nil
}

func (c *Cache) igetRaw(ctx context.Context, dev uint32, nr uint32) (*Inode, error) {
	key := inodeKey{dev, nr}
	if in, ok := c.byKey[key]; ok {
		in.refCount++
		return in, nil
	}

	sb, err := c.SuperBlockFor(dev)
	if err != nil {
		return nil, err
	}
	block, offset := sb.inodeBlockAndOffset(nr)
	buf, err := c.cache.Read(ctx, dev, block)
	if err != nil {
		return nil, err
	}

	in := &Inode{
		Device:    dev,
		Number:    nr,
		Disk:      *decodeInode(buf.Data[offset : offset+InodeSize]),
		buf:       buf,
		bufOffset: offset,
		refCount:  1,
	}
	c.byKey[key] = in
	return in, nil
}

// Iput implements iput: decrement refcount; at zero, release the
// underlying buffer and remove the inode from the cache.
func (c *Cache) Iput(in *Inode) {
	in.refCount--
	if in.refCount > 0 {
		return
	}
	c.flushLocked(in)
	delete(c.byKey, inodeKey{in.Device, in.Number})
	c.cache.Release(in.buf)
}

// MarkDirty re-encodes in's in-memory fields into its pinned buffer and
// marks that buffer dirty. Call after any mutation of in.Disk.
func (c *Cache) MarkDirty(in *Inode) {
	c.flushLocked(in)
	c.cache.MarkDirty(in.buf, true)
}

func (c *Cache) flushLocked(in *Inode) {
	in.Disk.encode(in.buf.Data[in.bufOffset : in.bufOffset+InodeSize])
}
