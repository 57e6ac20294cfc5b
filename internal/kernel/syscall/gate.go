package syscall

import (
	"context"
	"fmt"

	"github.com/hjw1766/XJOS/internal/kernel/proc"
	"github.com/hjw1766/XJOS/internal/metrics"
	"github.com/hjw1766/XJOS/internal/klog"
)

var sysLog = klog.ForComponent("syscall")

// handler is the uniform shape of every syscall entry: the calling
// process plus its decoded arguments in, a Result and a fatal error out.
// A non-nil error here is always a NotSupported/invariant condition the
// gate itself escalates; ordinary recoverable failures are reported
// through Result.Value == EOF instead.
type handler func(ctx context.Context, g *Gate, p *proc.Process, a Args) (Result, error)

// Gate is the fixed dispatch table: one *proc.Table bound to the
// process/memory/file-system subsystems every handler needs, plus a
// metrics sink tagging calls by number.
type Gate struct {
	Procs   *proc.Table
	Metrics metrics.Handle
	table   map[Number]handler
}

// New builds a gate over procs. metricsHandle may be metrics.Noop() in
// tests or anywhere metrics wiring isn't needed.
func New(procs *proc.Table, metricsHandle metrics.Handle) *Gate {
	g := &Gate{Procs: procs, Metrics: metricsHandle}
	g.table = map[Number]handler{
		Test:    sysTest,
		Exit:    sysExit,
		Fork:    sysFork,
		Read:    sysRead,
		Write:   sysWrite,
		Open:    sysOpen,
		Close:   sysClose,
		Waitpid: sysWaitpid,
		Creat:   sysCreat,
		Link:    sysLink,
		Unlink:  sysUnlink,
		Execve:  sysExecve,
		Chdir:   sysChdir,
		Time:    sysTime,
		Mknod:   sysMknod,
		Stat:    sysStat,
		Lseek:   sysLseek,
		Getpid:  sysGetpid,
		Mount:   sysMount,
		Umount:  sysUmount,
		Fstat:   sysFstat,
		Sync:    sysSync,
		Mkdir:   sysMkdir,
		Rmdir:   sysRmdir,
		Dup:     sysDup,
		Brk:     sysBrk,
		Umask:   sysUmask,
		Chroot:  sysChroot,
		Dup2:    sysDup2,
		Getppid: sysGetppid,
		Readdir: sysReaddir,
		Mmap:    sysMmap,
		Munmap:  sysMunmap,
		Yield:   sysYield,
		Sleep:   sysSleep,
		Getcwd:  sysGetcwd,
		Clear:   sysClear,
		Mkfs:    sysMkfs,
	}
	return g
}

// ErrNotSupported is returned for an unregistered syscall number: the
// caller (the trap handler) must treat this as fatal, not recoverable.
var ErrNotSupported = fmt.Errorf("syscall: not supported")

// Pipe installs a connected read/write descriptor pair on p, the one
// primitive the shell applet's pipeline support needs that has no entry
// in the syscall number table: pipe(2) isn't among the numbers §6.3
// assigns (the table is "subset stable, rest reserved"), so rather than
// invent a number the dispatch table was never given, this calls straight
// through to the fd table the way the other handlers do internally.
func (g *Gate) Pipe(p *proc.Process) (readFd, writeFd int, err error) {
	return p.Fds.Pipe()
}

// Dispatch runs the handler registered for num against p, the simulated
// equivalent of the assembly gate pushing an intr_frame and invoking the
// matching C handler. A return of ErrNotSupported means num is unknown
// and the calling task must be halted, not merely failed.
func (g *Gate) Dispatch(ctx context.Context, p *proc.Process, num Number, a Args) (Result, error) {
	h, ok := g.table[num]
	if !ok {
		sysLog.Error("unsupported syscall", "boot_id", g.Procs.BootID(), "pid", p.PID(), "number", uint32(num))
		return Result{}, ErrNotSupported
	}
	if g.Metrics != nil {
		g.Metrics.Syscall(uint32(num))
	}
	res, err := h(ctx, g, p, a)
	if err != nil {
		sysLog.Error("syscall handler error", "boot_id", g.Procs.BootID(), "pid", p.PID(), "number", uint32(num), "err", err)
	}
	return res, err
}
