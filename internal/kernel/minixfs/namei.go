package minixfs

import (
	"context"
	"fmt"
	"strings"
)

// Task is the minimal per-task context path resolution needs: where "/"
// and "." mean, for this caller.
type Task struct {
	Root *Inode
	Cwd  *Inode
}

// ErrNotFound is returned when a path component does not exist.
var ErrNotFound = fmt.Errorf("minixfs: no such file or directory")

// ErrNotDir is returned when an intermediate path component is not a
// directory.
var ErrNotDir = fmt.Errorf("minixfs: not a directory")

// ErrPermission is returned when an intermediate directory lacks execute
// permission for the resolving task.
var ErrPermission = fmt.Errorf("minixfs: permission denied")

// Named implements named(path, &remainder): resolves every component but
// the last, returning the parent directory inode (refcount held) and the
// final path component's name.
func (fs *FS) Named(ctx context.Context, t *Task, path string) (*Inode, string, error) {
	start, rest := fs.startingPoint(t, path)
	if start == nil {
		return nil, "", ErrNotFound
	}

	components := splitPath(rest)
	if len(components) == 0 {
		fs.bumpRef(start)
		return start, "", nil
	}

	dir := start
	fs.bumpRef(dir)
	for _, comp := range components[:len(components)-1] {
		next, err := fs.descend(ctx, t, dir, comp)
		if err != nil {
			fs.inodes.Iput(dir)
			return nil, "", err
		}
		fs.inodes.Iput(dir)
		dir = next
	}
	return dir, components[len(components)-1], nil
}

// Namei implements namei(path): Named, then resolves the final component
// too.
func (fs *FS) Namei(ctx context.Context, t *Task, path string) (*Inode, error) {
	parent, last, err := fs.Named(ctx, t, path)
	if err != nil {
		return nil, err
	}
	if last == "" {
		return parent, nil
	}
	in, err := fs.descend(ctx, t, parent, last)
	fs.inodes.Iput(parent)
	return in, err
}

func (fs *FS) startingPoint(t *Task, path string) (*Inode, string) {
	if strings.HasPrefix(path, "/") {
		return t.Root, strings.TrimPrefix(path, "/")
	}
	return t.Cwd, path
}

func splitPath(path string) []string {
	var out []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// descend resolves one path component inside dir, consulting (and
// maintaining) the dentry cache, and following mount points on `..` at a
// mounted root.
func (fs *FS) descend(ctx context.Context, t *Task, dir *Inode, name string) (*Inode, error) {
	if !dir.IsDir() {
		return nil, ErrNotDir
	}
	if dir.Disk.Mode&IXUSR == 0 {
		return nil, ErrPermission
	}

	if name == ".." && dir.Number == RootInode && dir.mountedDev == 0 {
		// Crossing back out of a mounted file system's root: handled by
		// the caller's super-block bookkeeping via mountPointOf.
		if mp, ok := fs.mountPointOf(dir.Device); ok {
			fs.inodes.igetRaw(ctx, mp.Device, mp.Number)
			return mp, nil
		}
	}

	if nr, ok := fs.dentry.lookup(dir.Device, dir.Number, name); ok {
		return fs.inodes.Iget(ctx, dir.Device, nr)
	}

	nr, err := fs.scanDirectory(ctx, dir, name)
	if err != nil {
		return nil, err
	}
	fs.dentry.insert(dir.Device, dir.Number, name, nr)
	return fs.inodes.Iget(ctx, dir.Device, nr)
}

// scanDirectory reads dir's entries through the buffer cache looking for
// name, returning its inode number.
func (fs *FS) scanDirectory(ctx context.Context, dir *Inode, name string) (uint32, error) {
	nEntries := dir.Disk.Size / DirEntrySize
	for i := uint32(0); i < nEntries; i++ {
		logical := (i * DirEntrySize) / BlockSize
		offset := (i * DirEntrySize) % BlockSize

		zone, err := fs.Bmap(ctx, dir, logical, false)
		if err != nil {
			return 0, err
		}
		if zone == 0 {
			continue
		}
		b, err := fs.cache.Read(ctx, dir.Device, int(zone))
		if err != nil {
			return 0, err
		}
		e := decodeDirEntry(b.Data[offset : offset+DirEntrySize])
		fs.cache.Release(b)
		if e.Inode != 0 && e.Name == name {
			return uint32(e.Inode), nil
		}
	}
	return 0, ErrNotFound
}

func (fs *FS) bumpRef(in *Inode) {
	in.refCount++
}
