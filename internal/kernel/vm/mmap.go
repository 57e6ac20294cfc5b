package vm

import (
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
)

// Brk implements sys_brk(addr): addr must be page-aligned and within
// [imgEnd, UserMmapAddr). Shrinking unmaps pages eagerly; growing is lazy
// (the fault path maps pages as they're first touched), so Brk only checks
// that the reported free-frame count could cover the new size.
func (as *AddressSpace) Brk(addr uint32) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if addr%pmm.PageSize != 0 {
		return 0, fmt.Errorf("vm: Brk: %#x is not page-aligned", addr)
	}
	if addr < as.imgEnd || addr >= UserMmapAddr {
		return 0, fmt.Errorf("vm: Brk: %#x outside [%#x, %#x)", addr, as.imgEnd, uint32(UserMmapAddr))
	}

	if addr < as.brk {
		for v := addr; v < as.brk; v += pmm.PageSize {
			as.unlinkPageLocked(v)
		}
		as.brk = addr
		return as.brk, nil
	}

	growth := addr - as.brk
	neededFrames := int(growth / pmm.PageSize)
	if as.frames.FreeCount() < neededFrames {
		return 0, pmm.ErrNoSpace
	}
	as.brk = addr
	return as.brk, nil
}

// MmapProt mirrors the protection/sharing flags a caller requests for a
// mapped region.
type MmapProt struct {
	Writable bool
	Shared   bool
}

// Mmap reserves n pages inside the mmap window and eagerly links them with
// the requested protection. If fill is non-nil it is copied into the new
// region (the fd-backed "seek and read immediately" case); otherwise pages
// come back zero-filled, matching a fresh frame's contents.
func (as *AddressSpace) Mmap(nPages int, prot MmapProt, fill []byte) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	base, err := as.mmap.reserve(nPages)
	if err != nil {
		return 0, err
	}

	for i := 0; i < nPages; i++ {
		vaddr := base + uint32(i)*pmm.PageSize
		if err := as.linkPageLocked(vaddr, prot.Writable); err != nil {
			for j := 0; j < i; j++ {
				as.unlinkPageLocked(base + uint32(j)*pmm.PageSize)
			}
			as.mmap.release(base, nPages)
			return 0, err
		}
		if prot.Shared {
			e := as.entryAt(vaddr, false)
			e.shared = true
		}
	}

	if fill != nil {
		remaining := fill
		for i := 0; i < nPages && len(remaining) > 0; i++ {
			vaddr := base + uint32(i)*pmm.PageSize
			n := copy(as.frames.Bytes(mustFrame(as, vaddr)), remaining)
			remaining = remaining[n:]
		}
	}

	return base, nil
}

// Munmap releases nPages starting at addr, which must lie fully within the
// mmap window.
func (as *AddressSpace) Munmap(addr uint32, nPages int) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if addr < UserMmapAddr || addr+uint32(nPages)*pmm.PageSize > UserMmapLimit {
		return fmt.Errorf("vm: Munmap: region at %#x outside the mmap window", addr)
	}
	for i := 0; i < nPages; i++ {
		as.unlinkPageLocked(addr + uint32(i)*pmm.PageSize)
	}
	as.mmap.release(addr, nPages)
	return nil
}

func mustFrame(as *AddressSpace, vaddr uint32) pmm.Frame {
	e := as.entryAt(vaddr, false)
	if e == nil || !e.present {
		panic(fmt.Sprintf("vm: mustFrame: %#x unmapped", vaddr))
	}
	return e.frame
}
