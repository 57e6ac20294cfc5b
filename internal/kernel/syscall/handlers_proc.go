package syscall

import (
	"context"

	"github.com/hjw1766/XJOS/internal/kernel/proc"
)

func sysTest(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	return ok(0)
}

func sysExit(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	g.Procs.Exit(p, a.Status)
	return Result{Exited: true}, nil
}

func sysFork(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	child, err := g.Procs.Fork(p)
	if err != nil {
		return fail()
	}
	return ok(int32(child.PID()))
}

func sysWaitpid(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	pid := a.Pid
	if pid == 0 {
		pid = -1
	}
	childPID, status, err := g.Procs.Waitpid(p, pid)
	if err != nil {
		// ErrNoChild and any other failure both report EOF to user space.
		return fail()
	}
	return Result{Value: int32(childPID), Status: int32(status)}, nil
}

func sysExecve(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	res, err := g.Procs.Execve(ctx, p, a.Path, a.Argv, a.Envp)
	if err != nil {
		return fail()
	}
	return Result{Value: 0, Entry: res.Entry, Stack: res.Stack}, nil
}

func sysGetpid(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	return ok(int32(p.PID()))
}

func sysGetppid(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	return ok(int32(p.PPID))
}
