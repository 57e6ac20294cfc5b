package minixfs

import (
	"context"

	"github.com/hjw1766/XJOS/internal/kernel/buffercache"
)

// FS ties together the buffer cache, the inode cache, and the dentry
// cache into the single collaborator every path-resolution and file-I/O
// operation in this package is a method on.
type FS struct {
	cache       *buffercache.Cache
	inodes      *Cache
	dentry      *dentryCache
	umask       uint16
	mountPoints map[uint32]*Inode // child device id -> its mount-point inode in the parent fs
	mountRoots  map[uint32]*Inode // child device id -> its own pinned root inode
	rootDev     uint32            // device id mounted as this FS's root, set by MountRoot
}

// New creates an empty file system context over the given buffer cache.
// Call MountRoot to attach a root device before resolving any path.
func New(bc *buffercache.Cache) *FS {
	return &FS{
		cache:       bc,
		inodes:      NewCache(bc),
		dentry:      newDentryCache(),
		umask:       0022,
		mountPoints: make(map[uint32]*Inode),
		mountRoots:  make(map[uint32]*Inode),
	}
}

// Umask returns the current process-wide umask: one umask per FS context,
// matching how this simulator models "a process" as a single-threaded
// owner of one FS handle.
func (fs *FS) Umask() uint16 { return fs.umask }

// SetUmask replaces the umask, returning the previous value.
func (fs *FS) SetUmask(mask uint16) uint16 {
	old := fs.umask
	fs.umask = mask & 0777
	return old
}

// DupInode bumps in's reference count and returns it, for callers (fork)
// that need to hand out a second independent reference to an inode they
// already hold, e.g. a child task's Root/Cwd.
func (fs *FS) DupInode(in *Inode) *Inode {
	fs.bumpRef(in)
	return in
}

// PutInode releases a reference taken by Namei, Named, or DupInode.
func (fs *FS) PutInode(in *Inode) {
	fs.inodes.Iput(in)
}

// Mkfs formats dev with a fresh MINIX-v1 layout over this FS's buffer
// cache, the sys_mkfs syscall's entry point. dev need not be mounted
// (indeed it usually isn't yet); call Mount or MountRoot afterward to
// attach it.
func (fs *FS) Mkfs(ctx context.Context, dev uint32, totalBlocks int, icount uint32) error {
	return Mkfs(ctx, fs.cache, dev, totalBlocks, icount)
}

// Sync writes back every dirty buffer in this FS's buffer cache, the
// sys_sync syscall's entry point.
func (fs *FS) Sync(ctx context.Context) error {
	return fs.cache.Sync(ctx)
}
