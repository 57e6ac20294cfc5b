package minixfs

import "context"

// Stat mirrors the handful of inode fields stat(2)/fstat(2) expose to
// user space.
type Stat struct {
	Inode  uint32
	Mode   uint16
	UID    uint16
	GID    uint8
	NLinks uint8
	Size   uint32
	MTime  uint32
}

// StatInode reads off an already-held inode's fields.
func StatInode(in *Inode) Stat {
	return Stat{
		Inode:  in.Number,
		Mode:   in.Disk.Mode,
		UID:    in.Disk.UID,
		GID:    in.Disk.GID,
		NLinks: in.Disk.NLinks,
		Size:   in.Disk.Size,
		MTime:  in.Disk.MTime,
	}
}

// Stat implements stat(path): resolve path and report its inode's fields.
func (fs *FS) Stat(ctx context.Context, t *Task, path string) (Stat, error) {
	in, err := fs.Namei(ctx, t, path)
	if err != nil {
		return Stat{}, err
	}
	defer fs.inodes.Iput(in)
	return StatInode(in), nil
}

// DirEntry is one entry returned by ReadDirent: the file's inode number
// and name.
type DirEntry struct {
	Inode uint32
	Name  string
}

// ReadDirent implements a single step of readdir(fd): given dir (a
// directory inode) and a byte cursor into its entry array, returns the
// next non-empty entry and the cursor position to resume from, or ok ==
// false once the cursor reaches the end. Skips freed (inode == 0) slots
// the way scanDirectory does, so a caller iterating cursor -> cursor
// sees only live entries, one per call, matching the original
// byte-cursor-in-the-open-file-object semantics.
func (fs *FS) ReadDirent(ctx context.Context, dir *Inode, cursor uint32) (entry DirEntry, next uint32, ok bool, err error) {
	nEntries := dir.Disk.Size / DirEntrySize
	for i := cursor / DirEntrySize; i < nEntries; i++ {
		logical := (i * DirEntrySize) / BlockSize
		offset := (i * DirEntrySize) % BlockSize

		zone, berr := fs.Bmap(ctx, dir, logical, false)
		if berr != nil {
			return DirEntry{}, cursor, false, berr
		}
		next = (i + 1) * DirEntrySize
		if zone == 0 {
			continue
		}
		b, berr := fs.cache.Read(ctx, dir.Device, int(zone))
		if berr != nil {
			return DirEntry{}, cursor, false, berr
		}
		e := decodeDirEntry(b.Data[offset : offset+DirEntrySize])
		fs.cache.Release(b)
		if e.Inode == 0 {
			continue
		}
		return DirEntry{Inode: uint32(e.Inode), Name: e.Name}, next, true, nil
	}
	return DirEntry{}, dir.Disk.Size, false, nil
}
