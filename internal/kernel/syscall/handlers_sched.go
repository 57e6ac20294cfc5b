package syscall

import (
	"context"

	"github.com/hjw1766/XJOS/internal/kernel/proc"
)

// sysYield and sysSleep only perform the scheduler-bookkeeping half of
// task_yield/task_sleep (updating the ready tree/sleep list and picking
// the next task to run); they do not themselves block the calling
// goroutine. The caller driving the dispatch loop is expected to check
// whether the returned task differs from p's and, if so, actually
// suspend this goroutine until it is redispatched — the same split
// proc.Waitpid makes explicit with its own kernsync.Gate.
func sysYield(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	g.Procs.Scheduler().Yield()
	return ok(0)
}

func sysSleep(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error) {
	const tickMs = 10
	g.Procs.Scheduler().Sleep(p.Sched, a.MS, tickMs)
	return ok(0)
}
