package vm

import (
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/pmm"
)

// window tracks which pages of a fixed virtual-address range are reserved,
// the way sys_mmap carves out pieces of [UserMmapAddr, UserMmapLimit).
// Modeled on pmm.KernelBitmap's scan-for-a-run allocator, applied to
// process-private address ranges instead of frames.
type window struct {
	base  uint32
	used  []bool
}

func newWindow(base, limit uint32) *window {
	return &window{base: base, used: make([]bool, (limit-base)/pmm.PageSize)}
}

func (w *window) clone() *window {
	c := &window{base: w.base, used: make([]bool, len(w.used))}
	copy(c.used, w.used)
	return c
}

// reserve finds n contiguous free pages and marks them used, returning the
// base address of the run.
func (w *window) reserve(n int) (uint32, error) {
	run := 0
	for i, used := range w.used {
		if used {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			for j := start; j <= i; j++ {
				w.used[j] = true
			}
			return w.base + uint32(start)*pmm.PageSize, nil
		}
	}
	return 0, fmt.Errorf("vm: mmap window exhausted")
}

// release clears n pages starting at addr.
func (w *window) release(addr uint32, n int) {
	start := int((addr - w.base) / pmm.PageSize)
	for i := start; i < start+n; i++ {
		w.used[i] = false
	}
}
