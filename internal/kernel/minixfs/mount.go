package minixfs

import (
	"context"
	"fmt"
)

// Mount implements mount(devpath, dirpath): devpath must resolve to a
// block-special inode, dirpath to a directory that is not already a mount
// point and has no other users (refcount exactly 1). The target device's
// super-block is read and registered, and dirpath's mount field is set.
func (fs *FS) Mount(ctx context.Context, t *Task, devpath, dirpath string, dev uint32) error {
	devInode, err := fs.Namei(ctx, t, devpath)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(devInode)
	if devInode.Disk.Mode&IFMT != IFBLK {
		return fmt.Errorf("minixfs: mount: %q is not a block-special file", devpath)
	}

	dir, err := fs.Namei(ctx, t, dirpath)
	if err != nil {
		return err
	}
	if !dir.IsDir() {
		fs.inodes.Iput(dir)
		return ErrNotDir
	}
	if dir.IsMountPoint() {
		fs.inodes.Iput(dir)
		return fmt.Errorf("minixfs: mount: %q is already a mount point", dirpath)
	}
	if dir.refCount != 1 {
		fs.inodes.Iput(dir)
		return fmt.Errorf("minixfs: mount: %q is busy", dirpath)
	}

	sb, err := ReadSuperBlock(ctx, fs.cache, dev)
	if err != nil {
		fs.inodes.Iput(dir)
		return err
	}
	fs.inodes.Mount(sb)

	root, err := fs.inodes.Iget(ctx, dev, RootInode)
	if err != nil {
		fs.inodes.Iput(dir)
		return err
	}

	dir.mountedDev = dev
	fs.inodes.MarkDirty(dir)
	fs.mountPoints[dev] = dir
	fs.mountRoots[dev] = root
	// dir's extra reference is held by mountPoints until Umount; root's
	// extra reference is held by mountRoots, giving the mounted file
	// system's root inode its required refcount >= 2 (mount + mount-point
	// linkage) for as long as it stays mounted.
	return nil
}

// MountRoot bootstraps a file system context onto dev as its root device:
// there is no parent directory to mount onto yet, so this bypasses path
// resolution entirely and hands back a Task rooted at the new device's
// root inode. Call this once per FS before any Named/Namei-based call.
func MountRoot(ctx context.Context, fs *FS, dev uint32) (*Task, error) {
	sb, err := ReadSuperBlock(ctx, fs.cache, dev)
	if err != nil {
		return nil, err
	}
	fs.inodes.Mount(sb)

	root, err := fs.inodes.Iget(ctx, dev, RootInode)
	if err != nil {
		return nil, err
	}
	fs.rootDev = dev
	return &Task{Root: root, Cwd: root}, nil
}

// Umount implements umount(path): refuses if the mounted root has other
// users, or if any other inode on the device is still in use.
func (fs *FS) Umount(ctx context.Context, t *Task, path string) error {
	in, err := fs.Namei(ctx, t, path)
	if err != nil {
		return err
	}
	defer fs.inodes.Iput(in)

	dev := in.Device
	mountDir, ok := fs.mountPoints[dev]
	if !ok || in.Number != RootInode {
		return fmt.Errorf("minixfs: umount: %q is not a mounted root", path)
	}
	// Baseline refcount while mounted is 2: one held by fs.mountRoots,
	// one from this call's own Namei resolution. Anything beyond that is
	// another user.
	if in.refCount > 2 {
		return fmt.Errorf("minixfs: umount: %q is busy", path)
	}
	if fs.inodes.anyInUse(dev, RootInode) {
		return fmt.Errorf("minixfs: umount: device %d has inodes in use", dev)
	}

	sb, err := fs.inodes.SuperBlockFor(dev)
	if err != nil {
		return err
	}
	sb.Close(fs.cache)
	delete(fs.inodes.supers, dev)

	if root, ok := fs.mountRoots[dev]; ok {
		fs.inodes.Iput(root)
		delete(fs.mountRoots, dev)
	}

	mountDir.mountedDev = 0
	fs.inodes.MarkDirty(mountDir)
	delete(fs.mountPoints, dev)
	fs.inodes.Iput(mountDir)
	return nil
}

// mountPointOf returns the mount-point inode in the parent file system for
// a mounted device, used by ".." resolution at a mounted root.
func (fs *FS) mountPointOf(dev uint32) (*Inode, bool) {
	mp, ok := fs.mountPoints[dev]
	return mp, ok
}

// anyInUse reports whether any cached inode on dev other than (dev,
// except) has a positive refcount.
func (c *Cache) anyInUse(dev uint32, except uint32) bool {
	for key, in := range c.byKey {
		if key.dev == dev && key.nr != except && in.refCount > 0 {
			return true
		}
	}
	return false
}
