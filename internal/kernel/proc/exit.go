package proc

import "github.com/hjw1766/XJOS/internal/kernel/sched"

// Exit implements exit(status): tears down the address space and file
// descriptors, releases the cwd/root/executable inode references,
// reparents any children to init, wakes a parent blocked in Waitpid for
// this process (or for any child), and marks the task Died. It never
// schedules a task back in; the caller (the simulated syscall gate) is
// expected to stop running this process's code after Exit returns.
func (tb *Table) Exit(p *Process, status int) {
	p.ExitStatus = status
	p.AS.FreePDE()
	p.Fds.CloseAll()
	tb.fsys.PutInode(p.FS.Root)
	tb.fsys.PutInode(p.FS.Cwd)
	if p.ExecInode != nil {
		tb.fsys.PutInode(p.ExecInode)
	}

	tb.mu.Lock()
	if tb.Init != nil && p != tb.Init {
		for _, c := range p.Children {
			c.Parent = tb.Init
			c.PPID = tb.Init.PID()
			tb.Init.Children = append(tb.Init.Children, c)
		}
	}
	p.Children = nil
	parent := p.Parent
	tb.mu.Unlock()

	tb.sc.Exit(p.Sched)

	if parent != nil {
		tb.wakeWaitingParent(parent, p)
	}
}

// wakeWaitingParent checks whether parent is currently blocked in
// Waitpid for child (or for any child), and if so removes it from its
// own wait list, applies the scheduler's unblock bookkeeping, and opens
// the gate parked in Waitpid to actually resume that goroutine.
func (tb *Table) wakeWaitingParent(parent *Process, child *Process) {
	tb.mu.Lock()
	if parent.waitGate == nil {
		tb.mu.Unlock()
		return
	}
	if parent.waitTarget != -1 && parent.waitTarget != int32(child.PID()) {
		tb.mu.Unlock()
		return
	}
	gate := parent.waitGate
	parent.waitGate = nil
	t := parent.waitList.RemoveMatching(func(tk *sched.Task) bool { return tk == parent.Sched })
	tb.mu.Unlock()

	if t != nil {
		tb.sc.Unblock(t)
	}
	gate.Open()
}
