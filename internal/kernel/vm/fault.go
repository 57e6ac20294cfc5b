package vm

import (
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
)

// FaultKind classifies how HandleFault resolved (or failed to resolve) a
// page fault, so callers (the syscall/interrupt layer) know whether to
// resume the faulting task or terminate it.
type FaultKind int

const (
	// FaultResolved means the fault was fixed up; the instruction may be
	// retried.
	FaultResolved FaultKind = iota
	// FaultFatal means the access was illegal; the task must be
	// terminated with exit code -1.
	FaultFatal
)

// ErrorCode mirrors the x86 page-fault error code bits this simulator
// cares about.
type ErrorCode struct {
	Present bool // the faulting page was present (a protection violation)
	Write   bool // the access was a write
	User    bool // the access came from user mode
}

// HandleFault implements the page-fault policy: given the faulting address
// and the access that caused it, either repair the mapping (demand paging,
// CoW duplication) or report that the fault is fatal.
func (as *AddressSpace) HandleFault(vaddr uint32, ec ErrorCode) (FaultKind, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if ec.User && (vaddr < UserExecAddr || vaddr >= UserStackTop) {
		return FaultFatal, nil
	}

	e := as.entryAt(vaddr, false)

	if ec.Present && ec.Write {
		if e == nil || !e.present {
			return FaultFatal, fmt.Errorf("vm: write fault on %#x reports present but no mapping exists", vaddr)
		}
		if e.readOnly {
			return FaultFatal, nil
		}
		// CoW-shared page: last owner may simply be marked writable in
		// place; otherwise duplicate it.
		if as.frames.RefCount(e.frame) == 1 {
			e.writable = true
			return FaultResolved, nil
		}
		newFrame, err := as.frames.AllocFrame()
		if err != nil {
			return FaultFatal, err
		}
		copy(as.frames.Bytes(newFrame), as.frames.Bytes(e.frame))
		as.frames.PutFrame(e.frame)
		*e = pte{frame: newFrame, present: true, writable: true}
		return FaultResolved, nil
	}

	if !ec.Present {
		heap := vaddr < as.brk
		stack := vaddr >= UserStackBottom && vaddr < UserStackTop
		if heap || stack {
			if err := as.linkPageLocked(pageFloor(vaddr), true); err != nil {
				return FaultFatal, err
			}
			return FaultResolved, nil
		}
	}

	return FaultFatal, nil
}

func pageFloor(v uint32) uint32 {
	return v - v%pmm.PageSize
}
