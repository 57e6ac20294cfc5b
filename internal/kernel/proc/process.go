// Package proc implements the process lifecycle: the task/PCB table,
// fork's copy-on-write duplication, execve's ELF32 loader, exit's
// teardown and reparenting, and waitpid's reap-or-block loop. It is the
// layer that ties package sched (scheduling policy), package vm (address
// spaces), and package minixfs (file descriptors, cwd/root inodes)
// together into something that behaves like a running process.
package proc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hjw1766/XJOS/internal/kernel/kernsync"
	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/pmm"
	"github.com/hjw1766/XJOS/internal/kernel/sched"
	"github.com/hjw1766/XJOS/internal/kernel/vm"
	"github.com/hjw1766/XJOS/internal/klog"
)

// InitPID is the process id reserved for the init task; orphaned children
// are reparented to it.
const InitPID = 1

var procLog = klog.ForComponent("proc")

// Process is one process's full control block: the scheduling fields
// (embedded via Sched), the address space, the file descriptor table, and
// the cwd/root/executable inode references fork must deep-copy and exit
// must release.
type Process struct {
	Sched *sched.Task
	PPID  uint32
	Name  string

	AS  *vm.AddressSpace
	FS  *minixfs.Task
	Fds *minixfs.FdTable

	// Pwd is the textual current-working-directory path getcwd(2)
	// reports; FS.Cwd is the inode it resolves to. The two are kept in
	// sync by the chdir syscall handler, the only place either changes.
	Pwd string

	ExecInode *minixfs.Inode

	TextEnd, DataEnd, ImgEnd uint32
	ExitStatus               int

	Parent   *Process
	Children []*Process

	// waitGate is non-nil exactly while a goroutine is blocked inside
	// Waitpid for this process; Exit opens it to wake that goroutine.
	waitGate   *kernsync.Gate
	waitTarget int32 // valid only while waitGate != nil; -1 means any child
	waitList   *sched.BlockList
}

// PID returns the process's id.
func (p *Process) PID() uint32 { return p.Sched.ID }

// Table is the system-wide process table: every live Process keyed by
// pid, the shared scheduler run queue, and the shared file system
// context new processes inherit from.
type Table struct {
	mu      sync.Mutex
	sc      *sched.Scheduler
	fsys    *minixfs.FS
	frames  *pmm.FrameTable
	byPID   map[uint32]*Process
	nextPID uint32
	Init    *Process
	bootID  uuid.UUID
}

// NewTable creates a process table bound to a scheduler, a file system
// context, and the frame table new address spaces allocate from.
func NewTable(sc *sched.Scheduler, fsys *minixfs.FS, frames *pmm.FrameTable) *Table {
	return &Table{
		sc:      sc,
		fsys:    fsys,
		frames:  frames,
		byPID:   make(map[uint32]*Process),
		nextPID: InitPID,
		bootID:  uuid.New(),
	}
}

// BootID returns the session-correlation id tagged onto every task's log
// lines this boot, so a reader can tell which run a log line belongs to.
func (tb *Table) BootID() string { return tb.bootID.String() }

func (tb *Table) allocPID() uint32 {
	pid := tb.nextPID
	tb.nextPID++
	return pid
}

// CreateInit creates pid 1, the ancestor every orphan is reparented to.
// root is the already-mounted root Task (see minixfs.MountRoot); imgEnd
// is where init's heap begins.
func (tb *Table) CreateInit(root *minixfs.Task, imgEnd uint32, nice int) *Process {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	p := &Process{
		Sched:    sched.NewTask(tb.allocPID(), nice),
		PPID:     0,
		Name:     "init",
		AS:       vm.New(tb.frames, imgEnd),
		FS:       &minixfs.Task{Root: root.Root, Cwd: root.Cwd},
		Fds:      minixfs.NewFdTable(tb.fsys),
		Pwd:      "/",
		ImgEnd:   imgEnd,
		waitList: sched.NewBlockList(),
	}
	tb.byPID[p.PID()] = p
	tb.Init = p
	tb.sc.Enqueue(p.Sched)
	procLog.Info("init created", "boot_id", tb.bootID, "pid", p.PID())
	return p
}

// Lookup returns the live process with the given pid, if any.
func (tb *Table) Lookup(pid uint32) (*Process, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	p, ok := tb.byPID[pid]
	return p, ok
}

func (tb *Table) register(p *Process) {
	tb.byPID[p.PID()] = p
}

func (tb *Table) unregister(p *Process) {
	delete(tb.byPID, p.PID())
}

// Scheduler returns the shared run queue, for callers (the syscall gate)
// that need direct access to scheduling operations this package doesn't
// wrap (yield, sleep, clock ticks).
func (tb *Table) Scheduler() *sched.Scheduler { return tb.sc }

// FS returns the shared file system context new processes inherit from.
func (tb *Table) FS() *minixfs.FS { return tb.fsys }

// ErrNoChild is returned by Waitpid when the calling process has no
// (matching) children at all, alive or dead.
var ErrNoChild = fmt.Errorf("proc: no matching child")
