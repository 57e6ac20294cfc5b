package proc

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/hjw1766/XJOS/internal/kernel/vm"
)

// ExecResult reports where the loaded image's entry point and initial
// stack live, the information a real kernel would forge into an
// intr_frame before jumping to interrupt_exit. This simulation has no
// interrupt return path to jump through, so execve simply reports the
// values that frame would have carried.
type ExecResult struct {
	Entry uint32
	Stack uint32
}

// Execve implements execve(filename, argv, envp): resolves and
// permission-checks the target, parses its ELF32 header, maps each
// PT_LOAD segment, copies argv/envp onto a prepared user stack, and
// swaps the process's executable inode reference. File descriptors and
// cwd are preserved across exec, matching the design.
func (tb *Table) Execve(ctx context.Context, p *Process, path string, argv, envp []string) (ExecResult, error) {
	in, err := tb.fsys.Namei(ctx, p.FS, path)
	if err != nil {
		return ExecResult{}, err
	}
	if in.Disk.Mode&minixfs.IFMT != minixfs.IFREG {
		tb.fsys.PutInode(in)
		return ExecResult{}, fmt.Errorf("proc: execve: %q is not a regular file", path)
	}
	if in.Disk.Mode&0111 == 0 {
		tb.fsys.PutInode(in)
		return ExecResult{}, fmt.Errorf("proc: execve: %q is not executable", path)
	}

	header := make([]byte, elfHeaderSize)
	if _, err := tb.fsys.Read(ctx, in, header, 0); err != nil {
		tb.fsys.PutInode(in)
		return ExecResult{}, err
	}
	eh, err := parseELF32Header(header)
	if err != nil {
		tb.fsys.PutInode(in)
		return ExecResult{}, err
	}

	phdrs := make([]elf32Phdr, 0, eh.phnum)
	phBuf := make([]byte, int(eh.phentsz)*int(eh.phnum))
	if _, err := tb.fsys.Read(ctx, in, phBuf, eh.phoff); err != nil {
		tb.fsys.PutInode(in)
		return ExecResult{}, err
	}
	for i := 0; i < int(eh.phnum); i++ {
		raw := phBuf[i*int(eh.phentsz) : (i+1)*int(eh.phentsz)]
		ph := parseELF32Phdr(raw)
		if ph.ptype == ptLoad {
			phdrs = append(phdrs, ph)
		}
	}

	newAS := vm.New(tb.frames, 0)
	var textEnd, dataEnd, imgEnd uint32
	for _, ph := range phdrs {
		if ph.vaddr%pmm.PageSize != 0 {
			tb.fsys.PutInode(in)
			return ExecResult{}, fmt.Errorf("proc: execve: segment at %#x is not page-aligned", ph.vaddr)
		}
		if ph.vaddr < vm.UserExecAddr || ph.vaddr >= vm.UserMmapAddr {
			tb.fsys.PutInode(in)
			return ExecResult{}, fmt.Errorf("proc: execve: segment at %#x outside the user image window", ph.vaddr)
		}

		span := ph.memsz
		if ph.filesz > span {
			span = ph.filesz
		}
		pages := pagesFor(span)
		writable := ph.flags&pfWrite != 0

		for pg := uint32(0); pg < pages; pg++ {
			vaddr := ph.vaddr + pg*pmm.PageSize
			if err := newAS.LinkPage(vaddr, true); err != nil {
				tb.fsys.PutInode(in)
				return ExecResult{}, err
			}
		}

		remaining := ph.filesz
		fileOff := ph.offset
		for pg := uint32(0); remaining > 0; pg++ {
			vaddr := ph.vaddr + pg*pmm.PageSize
			n := remaining
			if n > pmm.PageSize {
				n = pmm.PageSize
			}
			dst := newAS.Bytes(vaddr)
			if _, err := tb.fsys.Read(ctx, in, dst[:n], fileOff); err != nil {
				tb.fsys.PutInode(in)
				return ExecResult{}, err
			}
			for i := n; i < pmm.PageSize; i++ {
				dst[i] = 0 // zero the BSS tail of the last page
			}
			remaining -= n
			fileOff += n
		}

		if !writable {
			for pg := uint32(0); pg < pages; pg++ {
				newAS.MarkReadOnly(ph.vaddr + pg*pmm.PageSize)
			}
		}

		end := ph.vaddr + span
		if writable {
			if end > dataEnd {
				dataEnd = end
			}
		} else if end > textEnd {
			textEnd = end
		}
		if end > imgEnd {
			imgEnd = roundUpPage(end)
		}
	}

	newAS.SetImageEnd(imgEnd)
	stackTop, err := buildUserStack(newAS, argv, envp)
	if err != nil {
		tb.fsys.PutInode(in)
		return ExecResult{}, err
	}

	if p.ExecInode != nil {
		tb.fsys.PutInode(p.ExecInode)
	}
	p.AS.FreePDE()
	p.AS = newAS
	p.ExecInode = in
	p.TextEnd, p.DataEnd, p.ImgEnd = textEnd, dataEnd, imgEnd

	procLog.Info("execve", "boot_id", tb.bootID, "pid", p.PID(), "path", path)
	return ExecResult{Entry: eh.entry, Stack: stackTop}, nil
}

func pagesFor(size uint32) uint32 {
	return (size + pmm.PageSize - 1) / pmm.PageSize
}

func roundUpPage(v uint32) uint32 {
	return (v + pmm.PageSize - 1) &^ (pmm.PageSize - 1)
}

// buildUserStack copies argv/envp (NUL-terminated, back to back) onto a
// freshly linked top-of-stack page and returns the resulting
// stack pointer. Only the single top page is pre-populated; deeper
// stack growth is still demand-paged by HandleFault, same as any other
// stack access.
func buildUserStack(as *vm.AddressSpace, argv, envp []string) (uint32, error) {
	top := vm.UserStackTop - pmm.PageSize
	if err := as.LinkPage(top, true); err != nil {
		return 0, err
	}
	page := as.Bytes(top)
	cursor := len(page)
	write := func(s string) {
		n := len(s) + 1
		cursor -= n
		copy(page[cursor:], s)
		page[cursor+len(s)] = 0
	}
	for i := len(envp) - 1; i >= 0; i-- {
		write(envp[i])
	}
	for i := len(argv) - 1; i >= 0; i-- {
		write(argv[i])
	}
	return top + uint32(cursor), nil
}
