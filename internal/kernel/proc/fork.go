package proc

import (
	"golang.org/x/sync/errgroup"

	"github.com/hjw1766/XJOS/internal/kernel/minixfs"
	"github.com/hjw1766/XJOS/internal/kernel/sched"
)

// Fork implements fork(): assigns the child a new pid, then deep-copies
// the three independent pieces of a process's state in parallel (address
// space via copy-on-write, the fd table, and the filesystem-reference
// triple of root/cwd/executable inode) the same way the design's own
// fork() fans out its per-field deep copies. The child starts Ready with
// a fresh, zeroed scheduling history; it does not inherit the parent's
// vruntime, since vruntime is clamped to the ready queue's minimum on
// first enqueue anyway (see sched.Scheduler.Enqueue).
func (tb *Table) Fork(parent *Process) (*Process, error) {
	tb.mu.Lock()
	pid := tb.allocPID()
	tb.mu.Unlock()

	child := &Process{
		Sched:    sched.NewTask(pid, parent.Sched.Nice),
		PPID:     parent.PID(),
		Name:     parent.Name,
		Pwd:      parent.Pwd,
		ImgEnd:   parent.ImgEnd,
		TextEnd:  parent.TextEnd,
		DataEnd:  parent.DataEnd,
		Parent:   parent,
		waitList: sched.NewBlockList(),
	}

	var g errgroup.Group
	g.Go(func() error {
		child.AS = parent.AS.CopyPDE()
		return nil
	})
	g.Go(func() error {
		child.Fds = parent.Fds.Fork()
		return nil
	})
	g.Go(func() error {
		child.FS = &minixfs.Task{
			Root: tb.fsys.DupInode(parent.FS.Root),
			Cwd:  tb.fsys.DupInode(parent.FS.Cwd),
		}
		if parent.ExecInode != nil {
			child.ExecInode = tb.fsys.DupInode(parent.ExecInode)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	parent.Children = append(parent.Children, child)
	tb.register(child)
	tb.mu.Unlock()

	tb.sc.Enqueue(child.Sched)
	procLog.Info("fork", "boot_id", tb.bootID, "parent", parent.PID(), "child", child.PID())
	return child, nil
}
