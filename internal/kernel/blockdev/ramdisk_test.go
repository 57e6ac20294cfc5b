package blockdev

import "testing"

func TestRAMDiskRoundTripsWrittenSectors(t *testing.T) {
	d := NewRAMDisk(4 * SectorSize)

	n, err := d.Ioctl(CmdSectorSize)
	if err != nil || n != 4 {
		t.Fatalf("Ioctl(CmdSectorSize) = %d, %v, want 4, nil", n, err)
	}

	payload := make([]byte, SectorSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := d.WriteSectors(2, 1, payload); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}

	out := make([]byte, SectorSize)
	if err := d.ReadSectors(2, 1, out); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if string(out) != string(payload) {
		t.Fatalf("read back mismatched what was written")
	}
}

func TestRAMDiskRejectsOutOfRangeRequests(t *testing.T) {
	d := NewRAMDisk(2 * SectorSize)
	if err := d.ReadSectors(5, 1, make([]byte, SectorSize)); err == nil {
		t.Fatalf("expected an out-of-range read to fail")
	}
}
