// Package vm implements the per-process address space: page tables over
// the shared frame table, copy-on-write fork, demand paging for the heap
// and stack, and the page-fault policy that ties them together.
//
// A real two-level x86 page directory is a fixed 1024x1024 array of
// entries addressed by physical page tricks (including the self-mapped
// last PDE) that a hosted Go process has no way to reproduce faithfully.
// AddressSpace keeps the same two-level indexing scheme and the same
// fault/CoW semantics, but represents a directory as a sparse map of
// present page tables rather than a fixed array of 1024 table pointers,
// since nearly all of a typical process's 4 GiB address space is unmapped.
package vm

import (
	"fmt"
	"sync"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
)

const (
	entriesPerTable = 1024
	// UserExecAddr is the lowest address a user program's image may
	// occupy; addresses below it are never valid for a user fault.
	UserExecAddr = 0x01000000
	// UserMmapAddr/UserMmapLimit bound the window sys_mmap draws from.
	UserMmapAddr  = 0x08000000
	UserStackBottom = 0x0FC00000
	UserStackTop    = 0x10000000
	UserMmapLimit   = UserStackBottom
)

// pte is one page-table entry: a frame plus its protection bits.
type pte struct {
	frame    pmm.Frame
	present  bool
	writable bool
	readOnly bool // true O_RDONLY mapping; a write fault here is always fatal
	shared   bool // explicit MAP_SHARED page, exempt from CoW duplication
}

type pageTable struct {
	entries [entriesPerTable]pte
}

// AddressSpace is one process's page directory: a sparse map from
// directory index to page table, backed by a shared frame table.
type AddressSpace struct {
	mu      sync.Mutex
	frames  *pmm.FrameTable
	dirs    map[int]*pageTable
	brk     uint32 // current program break
	imgEnd  uint32 // end of the loaded image; brk's lower bound
	mmap    *window
}

// New creates an address space whose heap begins at imgEnd.
func New(frames *pmm.FrameTable, imgEnd uint32) *AddressSpace {
	return &AddressSpace{
		frames: frames,
		dirs:   make(map[int]*pageTable),
		brk:    imgEnd,
		imgEnd: imgEnd,
		mmap:   newWindow(UserMmapAddr, UserMmapLimit),
	}
}

// SetImageEnd resets imgEnd and brk to end, the execve-time equivalent
// of "shrink brk back to the image base, then extend it to cover the
// freshly loaded image": there is nothing between those two steps for a
// brand new address space, so they collapse into one assignment.
func (as *AddressSpace) SetImageEnd(end uint32) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.imgEnd = end
	as.brk = end
}

func split(v uint32) (dirIdx, tblIdx int) {
	page := v / pmm.PageSize
	return int(page / entriesPerTable), int(page % entriesPerTable)
}

func joinAddr(dirIdx, tblIdx int) uint32 {
	return uint32((dirIdx*entriesPerTable + tblIdx)) * pmm.PageSize
}

func (as *AddressSpace) tableFor(dirIdx int, create bool) *pageTable {
	t, ok := as.dirs[dirIdx]
	if !ok {
		if !create {
			return nil
		}
		t = &pageTable{}
		as.dirs[dirIdx] = t
	}
	return t
}

func (as *AddressSpace) entryAt(v uint32, create bool) *pte {
	d, i := split(v)
	t := as.tableFor(d, create)
	if t == nil {
		return nil
	}
	return &t.entries[i]
}

// LinkPage attaches a freshly allocated, zero-filled frame at vaddr,
// creating the page table on demand. Fails if the address already has a
// present mapping.
func (as *AddressSpace) LinkPage(vaddr uint32, writable bool) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.linkPageLocked(vaddr, writable)
}

func (as *AddressSpace) linkPageLocked(vaddr uint32, writable bool) error {
	e := as.entryAt(vaddr, true)
	if e.present {
		return fmt.Errorf("vm: LinkPage: %#x already mapped", vaddr)
	}
	f, err := as.frames.AllocFrame()
	if err != nil {
		return err
	}
	*e = pte{frame: f, present: true, writable: writable}
	return nil
}

// MarkReadOnly flags an already-mapped page as permanently read-only: a
// write fault against it is always fatal, even when its frame's refcount
// has dropped to 1 (the CoW fast path that would otherwise just flip the
// writable bit in place). Used by the ELF loader for non-writable
// PT_LOAD segments.
func (as *AddressSpace) MarkReadOnly(vaddr uint32) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if e := as.entryAt(vaddr, false); e != nil && e.present {
		e.readOnly = true
		e.writable = false
	}
}

// UnlinkPage detaches vaddr's mapping, decrementing the underlying frame's
// refcount (freeing it if it reaches zero). A no-op if nothing is mapped.
func (as *AddressSpace) UnlinkPage(vaddr uint32) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.unlinkPageLocked(vaddr)
}

func (as *AddressSpace) unlinkPageLocked(vaddr uint32) {
	e := as.entryAt(vaddr, false)
	if e == nil || !e.present {
		return
	}
	as.frames.PutFrame(e.frame)
	*e = pte{}
}

// Translate returns the frame backing vaddr, if present.
func (as *AddressSpace) Translate(vaddr uint32) (pmm.Frame, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	e := as.entryAt(vaddr, false)
	if e == nil || !e.present {
		return 0, false
	}
	return e.frame, true
}

// Bytes returns the page-aligned byte slice backing vaddr's frame, or nil
// if vaddr is unmapped.
func (as *AddressSpace) Bytes(vaddr uint32) []byte {
	f, ok := as.Translate(vaddr)
	if !ok {
		return nil
	}
	return as.frames.Bytes(f)
}

// CopyPDE clones as for a forked child: every present user page becomes
// copy-on-write in both directories (writable cleared, refcount bumped)
// unless it is an explicitly shared mapping, which is simply re-shared.
// Page tables themselves are duplicated rather than shared, matching the
// "physically copied via a temporary mapping" rule; here that temporary
// mapping is simply a second Go struct literal.
func (as *AddressSpace) CopyPDE() *AddressSpace {
	as.mu.Lock()
	defer as.mu.Unlock()

	child := &AddressSpace{
		frames: as.frames,
		dirs:   make(map[int]*pageTable, len(as.dirs)),
		brk:    as.brk,
		imgEnd: as.imgEnd,
		mmap:   as.mmap.clone(),
	}

	for idx, table := range as.dirs {
		childTable := &pageTable{}
		for i := range table.entries {
			e := &table.entries[i]
			if !e.present {
				continue
			}
			if e.shared {
				as.frames.RefFrame(e.frame)
				childTable.entries[i] = *e
				continue
			}
			e.writable = false
			as.frames.RefFrame(e.frame)
			childTable.entries[i] = *e
		}
		child.dirs[idx] = childTable
	}
	return child
}

// FreePDE tears down every present mapping, releasing frame references.
func (as *AddressSpace) FreePDE() {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, table := range as.dirs {
		for i := range table.entries {
			if table.entries[i].present {
				as.frames.PutFrame(table.entries[i].frame)
			}
		}
	}
	as.dirs = make(map[int]*pageTable)
}
