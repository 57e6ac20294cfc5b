package syscall

import (
	"context"

	"github.com/hjw1766/XJOS/internal/kernel/proc"
)

func sysBrk(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	newBrk, err := p.AS.Brk(a.Addr)
	if err != nil {
		return fail()
	}
	return ok(int32(newBrk))
}

func sysMmap(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	addr, err := p.AS.Mmap(a.NPages, a.Prot, a.Buf)
	if err != nil {
		return fail()
	}
	return ok(int32(addr))
}

func sysMunmap(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	if err := p.AS.Munmap(a.Addr, a.NPages); err != nil {
		return fail()
	}
	return ok(0)
}
