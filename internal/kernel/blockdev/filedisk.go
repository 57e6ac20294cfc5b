package blockdev

import (
	"fmt"
	"io"
	"os"
)

// FileDisk is a Driver backed by a regular file on the host filesystem,
// playing the persistent-media role ide_pio_read/ide_pio_write play
// against real IDE hardware in the original driver: sector-addressed
// ReadAt/WriteAt against an os.File instead of outb/insw against an I/O
// port range.
type FileDisk struct {
	f        *os.File
	nSectors int
}

// OpenFileDisk opens (creating if absent) a disk image at path, growing it
// to sizeBytes if it is smaller. An existing larger image is left alone so
// a previously mkfs'd image can be reopened by "run" without truncation.
func OpenFileDisk(path string, sizeBytes int) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: opening disk image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size < int64(sizeBytes) {
		if err := f.Truncate(int64(sizeBytes)); err != nil {
			f.Close()
			return nil, fmt.Errorf("blockdev: growing disk image %s: %w", path, err)
		}
		size = int64(sizeBytes)
	}
	return &FileDisk{f: f, nSectors: int(size) / SectorSize}, nil
}

func (d *FileDisk) Close() error { return d.f.Close() }

func (d *FileDisk) Ioctl(cmd IoctlCmd) (int, error) {
	switch cmd {
	case CmdSectorStart:
		return 0, nil
	case CmdSectorSize:
		return d.nSectors, nil
	default:
		return 0, fmt.Errorf("blockdev: filedisk: unrecognized ioctl %d", cmd)
	}
}

func (d *FileDisk) ReadSectors(start, count int, buf []byte) error {
	n, err := d.f.ReadAt(buf[:count*SectorSize], int64(start*SectorSize))
	if err != nil && err != io.EOF {
		return fmt.Errorf("blockdev: filedisk: read sectors [%d,+%d): %w", start, count, err)
	}
	if n < count*SectorSize {
		return fmt.Errorf("blockdev: filedisk: short read at sector %d", start)
	}
	return nil
}

func (d *FileDisk) WriteSectors(start, count int, buf []byte) error {
	if _, err := d.f.WriteAt(buf[:count*SectorSize], int64(start*SectorSize)); err != nil {
		return fmt.Errorf("blockdev: filedisk: write sectors [%d,+%d): %w", start, count, err)
	}
	return nil
}
