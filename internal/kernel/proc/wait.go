package proc

import (
	"github.com/hjw1766/XJOS/internal/kernel/kernsync"
	"github.com/hjw1766/XJOS/internal/kernel/sched"
)

// Waitpid implements waitpid(pid, status_out): pid == -1 matches any
// child. If a matching child has already exited, it is reaped
// immediately. If only live matching children remain, the calling
// goroutine blocks (via a kernsync.Gate, the same suspension primitive
// buffercache and pipe use) until Exit on a matching child wakes it, then
// retries. If there is no matching child at all, it returns ErrNoChild
// without blocking.
func (tb *Table) Waitpid(p *Process, pid int32) (childPID uint32, status int, err error) {
	for {
		tb.mu.Lock()
		if child, ok := findDeadChild(p, pid); ok {
			removeChild(p, child)
			tb.unregister(child)
			tb.mu.Unlock()
			return child.PID(), child.ExitStatus, nil
		}
		if !hasMatchingChild(p, pid) {
			tb.mu.Unlock()
			return 0, 0, ErrNoChild
		}

		gate := kernsync.NewGate()
		p.waitGate = gate
		p.waitTarget = pid
		p.waitList.RemoveAll() // this process is the only possible waiter
		tb.sc.Block(p.Sched, p.waitList)
		tb.mu.Unlock()

		gate.Wait()
	}
}

func findDeadChild(p *Process, pid int32) (*Process, bool) {
	for _, c := range p.Children {
		if pid != -1 && int32(c.PID()) != pid {
			continue
		}
		if c.Sched.State == sched.Died {
			return c, true
		}
	}
	return nil, false
}

func hasMatchingChild(p *Process, pid int32) bool {
	for _, c := range p.Children {
		if pid == -1 || int32(c.PID()) == pid {
			return true
		}
	}
	return false
}

func removeChild(p *Process, dead *Process) {
	for i, c := range p.Children {
		if c == dead {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			return
		}
	}
}
