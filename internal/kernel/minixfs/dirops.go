package minixfs

import (
	"context"
	"fmt"
)

// Mkdir implements mkdir(path, mode): resolve parent, fail if the
// component already exists, allocate an inode and a dentry, initialize
// mode = (mode & 0777 & ~umask) | IFDIR, nlinks=2, size=2 entries, write
// "." and ".." into a freshly allocated block, bump the parent's nlinks,
// mark every touched buffer dirty, and add the name to the dentry cache.
func (fs *FS) Mkdir(ctx context.Context, t *Task, path string, mode uint16) error {
	parent, name, err := fs.Named(ctx, t, path)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(parent)

	if _, err := fs.scanDirectory(ctx, parent, name); err == nil {
		return fmt.Errorf("minixfs: mkdir: %q already exists", path)
	}

	sb, err := fs.inodes.SuperBlockFor(parent.Device)
	if err != nil {
		return err
	}
	nr, err := sb.ialloc(fs.cache)
	if err != nil {
		return err
	}
	zone, err := sb.balloc(fs.cache)
	if err != nil {
		sb.ifree(fs.cache, nr)
		return err
	}

	dataBuf, err := fs.cache.Zero(ctx, parent.Device, int(zone))
	if err != nil {
		return err
	}
	dot := DirEntryDisk{Inode: uint16(nr), Name: "."}
	dotdot := DirEntryDisk{Inode: uint16(parent.Number), Name: ".."}
	dot.encode(dataBuf.Data[0:DirEntrySize])
	dotdot.encode(dataBuf.Data[DirEntrySize : 2*DirEntrySize])
	fs.cache.MarkDirty(dataBuf, true)
	fs.cache.Release(dataBuf)

	child, err := fs.inodes.Iget(ctx, parent.Device, nr)
	if err != nil {
		return err
	}
	child.Disk.Mode = (mode & 0777 & ^fs.umask) | IFDIR
	child.Disk.NLinks = 2
	child.Disk.Size = 2 * DirEntrySize
	child.Disk.Zones[0] = zone
	fs.inodes.MarkDirty(child)
	fs.inodes.Iput(child)

	parent.Disk.NLinks++
	if err := fs.addDirEntry(ctx, parent, name, nr); err != nil {
		return err
	}
	fs.inodes.MarkDirty(parent)
	fs.dentry.insert(parent.Device, parent.Number, name, nr)
	return nil
}

// addDirEntry appends (or overwrites a freed slot with) a directory entry
// mapping name to childNr, extending the directory's size if needed.
func (fs *FS) addDirEntry(ctx context.Context, dir *Inode, name string, childNr uint32) error {
	nEntries := dir.Disk.Size / DirEntrySize
	for i := uint32(0); i < nEntries; i++ {
		logical := (i * DirEntrySize) / BlockSize
		offset := (i * DirEntrySize) % BlockSize
		zone, err := fs.Bmap(ctx, dir, logical, true)
		if err != nil {
			return err
		}
		b, err := fs.cache.Read(ctx, dir.Device, int(zone))
		if err != nil {
			return err
		}
		e := decodeDirEntry(b.Data[offset : offset+DirEntrySize])
		if e.Inode == 0 {
			entry := DirEntryDisk{Inode: uint16(childNr), Name: name}
			entry.encode(b.Data[offset : offset+DirEntrySize])
			fs.cache.MarkDirty(b, true)
			fs.cache.Release(b)
			return nil
		}
		fs.cache.Release(b)
	}

	entry := DirEntryDisk{Inode: uint16(childNr), Name: name}
	return fs.writeNewDirEntry(ctx, dir, nEntries, entry)
}

func (fs *FS) writeNewDirEntry(ctx context.Context, dir *Inode, index uint32, entry DirEntryDisk) error {
	logical := (index * DirEntrySize) / BlockSize
	offset := (index * DirEntrySize) % BlockSize
	zone, err := fs.Bmap(ctx, dir, logical, true)
	if err != nil {
		return err
	}
	b, err := fs.writeBlock(ctx, dir.Device, zone, int(offset), DirEntrySize)
	if err != nil {
		return err
	}
	entry.encode(b.Data[offset : offset+DirEntrySize])
	fs.cache.MarkDirty(b, true)
	fs.cache.Release(b)

	dir.Disk.Size = (index + 1) * DirEntrySize
	fs.inodes.MarkDirty(dir)
	return nil
}

// Rmdir implements rmdir(path): must be a directory, must not be the
// current working directory or a mount point or busy (refcount > 1), and
// must contain only "." and "..".
func (fs *FS) Rmdir(ctx context.Context, t *Task, path string) error {
	parent, name, err := fs.Named(ctx, t, path)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(parent)

	nr, err := fs.scanDirectory(ctx, parent, name)
	if err != nil {
		return err
	}
	victim, err := fs.inodes.Iget(ctx, parent.Device, nr)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(victim)

	if !victim.IsDir() {
		return ErrNotDir
	}
	if victim == t.Cwd {
		return fmt.Errorf("minixfs: rmdir: %q is the current working directory", path)
	}
	if victim.IsMountPoint() {
		return fmt.Errorf("minixfs: rmdir: %q is a mount point", path)
	}
	if victim.refCount > 1 {
		return fmt.Errorf("minixfs: rmdir: %q is busy", path)
	}
	empty, err := fs.isEmptyDir(ctx, victim)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("minixfs: rmdir: %q is not empty", path)
	}

	if err := fs.Truncate(ctx, victim); err != nil {
		return err
	}
	sb, err := fs.inodes.SuperBlockFor(victim.Device)
	if err != nil {
		return err
	}
	sb.ifree(fs.cache, victim.Number)

	if err := fs.clearDirEntry(ctx, parent, name); err != nil {
		return err
	}
	parent.Disk.NLinks--
	fs.inodes.MarkDirty(parent)
	fs.dentry.evict(parent.Device, parent.Number, name)
	return nil
}

func (fs *FS) isEmptyDir(ctx context.Context, dir *Inode) (bool, error) {
	nEntries := dir.Disk.Size / DirEntrySize
	for i := uint32(0); i < nEntries; i++ {
		logical := (i * DirEntrySize) / BlockSize
		offset := (i * DirEntrySize) % BlockSize
		zone, err := fs.Bmap(ctx, dir, logical, false)
		if err != nil {
			return false, err
		}
		if zone == 0 {
			continue
		}
		b, err := fs.cache.Read(ctx, dir.Device, int(zone))
		if err != nil {
			return false, err
		}
		e := decodeDirEntry(b.Data[offset : offset+DirEntrySize])
		fs.cache.Release(b)
		if e.Inode != 0 && e.Name != "." && e.Name != ".." {
			return false, nil
		}
	}
	return true, nil
}

func (fs *FS) clearDirEntry(ctx context.Context, dir *Inode, name string) error {
	nEntries := dir.Disk.Size / DirEntrySize
	for i := uint32(0); i < nEntries; i++ {
		logical := (i * DirEntrySize) / BlockSize
		offset := (i * DirEntrySize) % BlockSize
		zone, err := fs.Bmap(ctx, dir, logical, false)
		if err != nil {
			return err
		}
		if zone == 0 {
			continue
		}
		b, err := fs.cache.Read(ctx, dir.Device, int(zone))
		if err != nil {
			return err
		}
		e := decodeDirEntry(b.Data[offset : offset+DirEntrySize])
		if e.Inode != 0 && e.Name == name {
			zeroEntry := DirEntryDisk{}
			zeroEntry.encode(b.Data[offset : offset+DirEntrySize])
			fs.cache.MarkDirty(b, true)
			fs.cache.Release(b)
			return nil
		}
		fs.cache.Release(b)
	}
	return ErrNotFound
}

// Unlink implements unlink(path): must not be a directory. Zero the
// parent dentry, decrement nlinks; if nlinks reaches 0, truncate and
// ifree. Evict the dentry cache entry.
func (fs *FS) Unlink(ctx context.Context, t *Task, path string) error {
	parent, name, err := fs.Named(ctx, t, path)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(parent)

	nr, err := fs.scanDirectory(ctx, parent, name)
	if err != nil {
		return err
	}
	victim, err := fs.inodes.Iget(ctx, parent.Device, nr)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(victim)
	if victim.IsDir() {
		return fmt.Errorf("minixfs: unlink: %q is a directory", path)
	}

	if err := fs.clearDirEntry(ctx, parent, name); err != nil {
		return err
	}
	fs.dentry.evict(parent.Device, parent.Number, name)

	victim.Disk.NLinks--
	if victim.Disk.NLinks == 0 {
		if err := fs.Truncate(ctx, victim); err != nil {
			return err
		}
		sb, err := fs.inodes.SuperBlockFor(victim.Device)
		if err != nil {
			return err
		}
		sb.ifree(fs.cache, victim.Number)
	}
	fs.inodes.MarkDirty(victim)
	return nil
}

// Link implements link(old, new): same device only, not a directory,
// allocate a new dentry pointing to the existing inode number, increment
// nlinks.
func (fs *FS) Link(ctx context.Context, t *Task, oldpath, newpath string) error {
	target, err := fs.Namei(ctx, t, oldpath)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(target)
	if target.IsDir() {
		return fmt.Errorf("minixfs: link: %q is a directory", oldpath)
	}

	parent, name, err := fs.Named(ctx, t, newpath)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(parent)
	if parent.Device != target.Device {
		return fmt.Errorf("minixfs: link: cross-device link")
	}

	if err := fs.addDirEntry(ctx, parent, name, target.Number); err != nil {
		return err
	}
	fs.dentry.insert(parent.Device, parent.Number, name, target.Number)

	target.Disk.NLinks++
	fs.inodes.MarkDirty(target)
	return nil
}

// Mknod implements mknod(path, mode, dev): a file create whose mode
// encodes the device kind, with the device id stored in zones[0].
func (fs *FS) Mknod(ctx context.Context, t *Task, path string, mode uint16, dev uint32) error {
	parent, name, err := fs.Named(ctx, t, path)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(parent)

	if _, err := fs.scanDirectory(ctx, parent, name); err == nil {
		return fmt.Errorf("minixfs: mknod: %q already exists", path)
	}

	sb, err := fs.inodes.SuperBlockFor(parent.Device)
	if err != nil {
		return err
	}
	nr, err := sb.ialloc(fs.cache)
	if err != nil {
		return err
	}

	child, err := fs.inodes.Iget(ctx, parent.Device, nr)
	if err != nil {
		return err
	}
	child.Disk.Mode = mode
	child.Disk.NLinks = 1
	child.Disk.Zones[0] = dev
	fs.inodes.MarkDirty(child)
	fs.inodes.Iput(child)

	if err := fs.addDirEntry(ctx, parent, name, nr); err != nil {
		return err
	}
	fs.dentry.insert(parent.Device, parent.Number, name, nr)
	return nil
}
