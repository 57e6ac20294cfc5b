package blockdev

import (
	"path/filepath"
	"testing"
)

func TestFileDiskGrowsFreshImageAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	d, err := OpenFileDisk(path, 4*SectorSize)
	if err != nil {
		t.Fatalf("OpenFileDisk: %v", err)
	}
	defer d.Close()

	payload := []byte("0123456789abcdef")
	buf := make([]byte, SectorSize)
	copy(buf, payload)
	if err := d.WriteSectors(1, 1, buf); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}

	out := make([]byte, SectorSize)
	if err := d.ReadSectors(1, 1, out); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if string(out[:len(payload)]) != string(payload) {
		t.Fatalf("read back mismatched what was written")
	}
}

func TestFileDiskReopenPreservesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	d1, err := OpenFileDisk(path, 4*SectorSize)
	if err != nil {
		t.Fatalf("OpenFileDisk: %v", err)
	}
	buf := make([]byte, SectorSize)
	copy(buf, []byte("persisted"))
	if err := d1.WriteSectors(0, 1, buf); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}
	d1.Close()

	d2, err := OpenFileDisk(path, 4*SectorSize)
	if err != nil {
		t.Fatalf("reopening OpenFileDisk: %v", err)
	}
	defer d2.Close()

	out := make([]byte, SectorSize)
	if err := d2.ReadSectors(0, 1, out); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if string(out[:9]) != "persisted" {
		t.Fatalf("reopened disk lost previously written content")
	}
}
