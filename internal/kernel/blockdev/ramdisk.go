package blockdev

import "fmt"

// RAMDisk is an in-memory Driver backing the default disk the "run"
// subcommand falls back to when no image path is configured,
// grounded directly on the original ramdisk_t/ramdisk_read/ramdisk_write
// driver: a flat byte slice addressed by lba*SECTOR_SIZE, copied in and
// out on every request rather than paged.
type RAMDisk struct {
	data []byte
}

// NewRAMDisk allocates a zero-filled disk of sizeBytes, rounded down to a
// whole number of sectors the way ramdisk_init asserts size%SECTOR_SIZE==0.
func NewRAMDisk(sizeBytes int) *RAMDisk {
	n := (sizeBytes / SectorSize) * SectorSize
	return &RAMDisk{data: make([]byte, n)}
}

func (d *RAMDisk) Ioctl(cmd IoctlCmd) (int, error) {
	switch cmd {
	case CmdSectorStart:
		return 0, nil
	case CmdSectorSize:
		return len(d.data) / SectorSize, nil
	default:
		return 0, fmt.Errorf("blockdev: ramdisk: unrecognized ioctl %d", cmd)
	}
}

func (d *RAMDisk) bounds(start, count int) (int, int, error) {
	off := start * SectorSize
	ln := count * SectorSize
	if off < 0 || ln < 0 || off+ln > len(d.data) {
		return 0, 0, fmt.Errorf("blockdev: ramdisk: request [%d,+%d) out of range", start, count)
	}
	return off, ln, nil
}

func (d *RAMDisk) ReadSectors(start, count int, buf []byte) error {
	off, ln, err := d.bounds(start, count)
	if err != nil {
		return err
	}
	copy(buf, d.data[off:off+ln])
	return nil
}

func (d *RAMDisk) WriteSectors(start, count int, buf []byte) error {
	off, ln, err := d.bounds(start, count)
	if err != nil {
		return err
	}
	copy(d.data[off:off+ln], buf)
	return nil
}
