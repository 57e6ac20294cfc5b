package minixfs

import (
	"context"
	"fmt"
)

// OpenFlag mirrors the handful of open(2) flags this simulator honors.
type OpenFlag int

const (
	ORead OpenFlag = 1 << iota
	OWrite
	OAppend
	OCreate
	OTrunc
)

// SeekWhence selects lseek's origin.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCur
	SeekEnd
)

// maxFds is the number of descriptor slots in one task's fd table,
// matching the traditional fixed-size per-process table.
const maxFds = 16

// CharDevice is a character-special device: a byte stream identified by
// the minor/major id stored in an IFCHR inode's zones[0].
type CharDevice interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Write(ctx context.Context, buf []byte) (int, error)
}

// openFile is one entry in the system-wide open-file table: a cursor and
// reference count shared by every descriptor that dup'd from the same
// open(2) call.
type openFile struct {
	inode    *Inode
	flags    OpenFlag
	offset   uint32
	refCount int
	pipeEnd  *pipe
	pipeRead bool
}

// FdTable is one task's descriptor table: up to maxFds slots, each either
// empty or pointing at a shared *openFile.
type FdTable struct {
	fs    *FS
	slots [maxFds]*openFile
	devs  map[uint32]CharDevice
}

// NewFdTable creates an empty descriptor table bound to fs.
func NewFdTable(fs *FS) *FdTable {
	return &FdTable{fs: fs, devs: make(map[uint32]CharDevice)}
}

// RegisterDevice binds a character-device backend to a device id, so
// opening an IFCHR inode with that id in zones[0] dispatches to it.
func (t *FdTable) RegisterDevice(id uint32, dev CharDevice) {
	t.devs[id] = dev
}

func (t *FdTable) lowestFree() (int, error) {
	for i := 0; i < maxFds; i++ {
		if t.slots[i] == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("minixfs: fd table full")
}

// Open implements open(path, flags): resolves (or creates, with OCreate)
// path, and installs it at the lowest free descriptor.
func (t *FdTable) Open(ctx context.Context, task *Task, path string, flags OpenFlag, mode uint16) (int, error) {
	in, err := t.fs.Namei(ctx, task, path)
	if err != nil {
		if err != ErrNotFound || flags&OCreate == 0 {
			return -1, err
		}
		parent, name, nerr := t.fs.Named(ctx, task, path)
		if nerr != nil {
			return -1, nerr
		}
		if cerr := t.fs.createRegular(ctx, parent, name, mode); cerr != nil {
			t.fs.inodes.Iput(parent)
			return -1, cerr
		}
		t.fs.inodes.Iput(parent)
		in, err = t.fs.Namei(ctx, task, path)
		if err != nil {
			return -1, err
		}
	}

	if flags&OTrunc != 0 && in.Disk.Mode&IFMT == IFREG {
		if err := t.fs.Truncate(ctx, in); err != nil {
			t.fs.inodes.Iput(in)
			return -1, err
		}
	}

	fd, err := t.lowestFree()
	if err != nil {
		t.fs.inodes.Iput(in)
		return -1, err
	}

	of := &openFile{inode: in, flags: flags, refCount: 1}
	if flags&OAppend != 0 {
		of.offset = in.Disk.Size
	}
	if in.pipe {
		of.pipeEnd = in.pipeState
		of.pipeRead = flags&ORead != 0
		if of.pipeRead {
			of.pipeEnd.addReader()
		} else {
			of.pipeEnd.addWriter()
		}
	}
	t.slots[fd] = of
	return fd, nil
}

// createRegular allocates a fresh zero-length regular file named name in
// parent, the non-directory counterpart to Mkdir.
func (fs *FS) createRegular(ctx context.Context, parent *Inode, name string, mode uint16) error {
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
	child.Disk.Mode = (mode & 0777 & ^fs.umask) | IFREG
	child.Disk.NLinks = 1
	fs.inodes.MarkDirty(child)
	fs.inodes.Iput(child)

	if err := fs.addDirEntry(ctx, parent, name, nr); err != nil {
		return err
	}
	fs.dentry.insert(parent.Device, parent.Number, name, nr)
	return nil
}

// Pipe implements pipe(): installs a connected read/write descriptor
// pair over a freshly allocated in-memory ring buffer.
func (t *FdTable) Pipe() (readFd, writeFd int, err error) {
	readFd, err = t.lowestFree()
	if err != nil {
		return -1, -1, err
	}
	p := newPipe()
	t.slots[readFd] = &openFile{flags: ORead, refCount: 1, pipeEnd: p, pipeRead: true}

	writeFd, err = t.lowestFreeExcept(readFd)
	if err != nil {
		t.slots[readFd] = nil
		return -1, -1, err
	}
	t.slots[writeFd] = &openFile{flags: OWrite, refCount: 1, pipeEnd: p, pipeRead: false}
	return readFd, writeFd, nil
}

func (t *FdTable) lowestFreeExcept(except int) (int, error) {
	for i := 0; i < maxFds; i++ {
		if i != except && t.slots[i] == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("minixfs: fd table full")
}

// Close implements close(fd): drops this descriptor's reference to the
// underlying open file, releasing the inode (or pipe end) at zero.
func (t *FdTable) Close(fd int) error {
	of, err := t.lookup(fd)
	if err != nil {
		return err
	}
	t.slots[fd] = nil
	of.refCount--
	if of.refCount > 0 {
		return nil
	}
	if of.pipeEnd != nil {
		if of.pipeRead {
			of.pipeEnd.dropReader()
		} else {
			of.pipeEnd.dropWriter()
		}
		return nil
	}
	if of.inode != nil {
		t.fs.inodes.Iput(of.inode)
	}
	return nil
}

// Dup implements dup(fd): install a new reference to fd's open file at
// the lowest free descriptor.
func (t *FdTable) Dup(fd int) (int, error) {
	of, err := t.lookup(fd)
	if err != nil {
		return -1, err
	}
	newFd, err := t.lowestFree()
	if err != nil {
		return -1, err
	}
	of.refCount++
	t.slots[newFd] = of
	return newFd, nil
}

// Dup2 implements dup2(oldfd, newfd): install a new reference to oldfd's
// open file at newfd, closing whatever newfd previously held.
func (t *FdTable) Dup2(oldfd, newfd int) (int, error) {
	of, err := t.lookup(oldfd)
	if err != nil {
		return -1, err
	}
	if oldfd == newfd {
		return newfd, nil
	}
	if newfd < 0 || newfd >= maxFds {
		return -1, fmt.Errorf("minixfs: bad fd %d", newfd)
	}
	if t.slots[newfd] != nil {
		if err := t.Close(newfd); err != nil {
			return -1, err
		}
	}
	of.refCount++
	t.slots[newfd] = of
	return newfd, nil
}

// CloseAll closes every occupied descriptor, for process exit.
func (t *FdTable) CloseAll() {
	for fd := range t.slots {
		if t.slots[fd] != nil {
			_ = t.Close(fd)
		}
	}
}

// Fork duplicates the table for a forking child: every slot is shared
// (same offset, same open-file description) rather than reopened, so a
// seek through either parent's or child's copy of a descriptor moves the
// other's too, matching fork(2)'s fd-sharing semantics.
func (t *FdTable) Fork() *FdTable {
	child := &FdTable{fs: t.fs, devs: t.devs}
	for i, of := range t.slots {
		if of == nil {
			continue
		}
		of.refCount++
		child.slots[i] = of
	}
	return child
}

// ReadDir implements readdir(fd): advances fd's byte cursor and returns
// the next live directory entry, or ok == false once the directory is
// exhausted.
func (t *FdTable) ReadDir(ctx context.Context, fd int) (entry DirEntry, ok bool, err error) {
	of, err := t.lookup(fd)
	if err != nil {
		return DirEntry{}, false, err
	}
	if !of.inode.IsDir() {
		return DirEntry{}, false, fmt.Errorf("minixfs: fd %d is not a directory", fd)
	}
	entry, next, ok, err := t.fs.ReadDirent(ctx, of.inode, of.offset)
	if err != nil {
		return DirEntry{}, false, err
	}
	of.offset = next
	return entry, ok, nil
}

// Stat implements fstat(fd): report the fields of the inode fd refers to.
func (t *FdTable) Stat(fd int) (Stat, error) {
	of, err := t.lookup(fd)
	if err != nil {
		return Stat{}, err
	}
	return StatInode(of.inode), nil
}

func (t *FdTable) lookup(fd int) (*openFile, error) {
	if fd < 0 || fd >= maxFds || t.slots[fd] == nil {
		return nil, fmt.Errorf("minixfs: bad fd %d", fd)
	}
	return t.slots[fd], nil
}

// Read dispatches by file kind: pipe end, character device, block
// device (requiring block-aligned offset and length), or regular/
// directory inode.
func (t *FdTable) Read(ctx context.Context, fd int, buf []byte) (int, error) {
	of, err := t.lookup(fd)
	if err != nil {
		return 0, err
	}
	if of.pipeEnd != nil {
		return of.pipeEnd.Read(buf)
	}

	in := of.inode
	switch in.Disk.Mode & IFMT {
	case IFCHR:
		dev, ok := t.devs[in.Disk.Zones[0]]
		if !ok {
			return 0, fmt.Errorf("minixfs: no driver for character device %d", in.Disk.Zones[0])
		}
		return dev.Read(ctx, buf)
	case IFBLK:
		n, err := t.blockDeviceIO(ctx, in, buf, of.offset, false)
		of.offset += uint32(n)
		return n, err
	default:
		n, err := t.fs.Read(ctx, in, buf, of.offset)
		of.offset += uint32(n)
		return n, err
	}
}

// Write dispatches the same way Read does.
func (t *FdTable) Write(ctx context.Context, fd int, buf []byte) (int, error) {
	of, err := t.lookup(fd)
	if err != nil {
		return 0, err
	}
	if of.pipeEnd != nil {
		return of.pipeEnd.Write(buf)
	}

	in := of.inode
	switch in.Disk.Mode & IFMT {
	case IFCHR:
		dev, ok := t.devs[in.Disk.Zones[0]]
		if !ok {
			return 0, fmt.Errorf("minixfs: no driver for character device %d", in.Disk.Zones[0])
		}
		return dev.Write(ctx, buf)
	case IFBLK:
		n, err := t.blockDeviceIO(ctx, in, buf, of.offset, true)
		of.offset += uint32(n)
		return n, err
	default:
		if of.flags&OAppend != 0 {
			of.offset = in.Disk.Size
		}
		n, err := t.fs.Write(ctx, in, buf, of.offset)
		of.offset += uint32(n)
		return n, err
	}
}

// blockDeviceIO reads or writes whole blocks of the raw device named by
// in.Disk.Zones[0], bypassing the inode's own block map entirely: a
// block-special file addresses the device's blocks directly.
func (t *FdTable) blockDeviceIO(ctx context.Context, in *Inode, buf []byte, offset uint32, write bool) (int, error) {
	if offset%BlockSize != 0 || len(buf)%BlockSize != 0 {
		return 0, fmt.Errorf("minixfs: block device I/O must be block-aligned")
	}
	dev := in.Disk.Zones[0]
	n := 0
	for n < len(buf) {
		block := int(offset/BlockSize) + n/BlockSize
		if write {
			b, err := t.fs.cache.Zero(ctx, dev, block)
			if err != nil {
				return n, err
			}
			copy(b.Data[:], buf[n:n+BlockSize])
			t.fs.cache.MarkDirty(b, true)
			t.fs.cache.Release(b)
		} else {
			b, err := t.fs.cache.Read(ctx, dev, block)
			if err != nil {
				return n, err
			}
			copy(buf[n:n+BlockSize], b.Data[:])
			t.fs.cache.Release(b)
		}
		n += BlockSize
	}
	return n, nil
}

// Lseek implements lseek(fd, offset, whence): rejects a resulting offset
// below zero.
func (t *FdTable) Lseek(fd int, offset int64, whence SeekWhence) (uint32, error) {
	of, err := t.lookup(fd)
	if err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = int64(of.offset)
	case SeekEnd:
		if of.inode == nil {
			return 0, fmt.Errorf("minixfs: lseek: not seekable")
		}
		base = int64(of.inode.Disk.Size)
	default:
		return 0, fmt.Errorf("minixfs: lseek: bad whence %d", whence)
	}
	result := base + offset
	if result < 0 {
		return 0, fmt.Errorf("minixfs: lseek: negative resulting offset")
	}
	of.offset = uint32(result)
	return of.offset, nil
}
