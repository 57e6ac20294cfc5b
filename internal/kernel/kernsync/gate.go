// Package kernsync provides the one concurrency primitive shared by the
// lower kernel layers (blockdev, buffercache) that need "block the calling
// task until someone signals me" without depending on the scheduler
// package: a single-use, single-waiter gate backed by a channel. The
// scheduler (package sched) additionally records vruntime/ready-queue
// bookkeeping around the same block/unblock points; Gate only supplies the
// actual suspension a goroutine-based simulation needs to realize that
// bookkeeping as real blocking.
package kernsync

// Gate is a one-shot wakeup signal. Open is idempotent; Wait returns as
// soon as Open has been called, even if that happened before Wait started.
type Gate struct {
	ch chan struct{}
}

// NewGate returns a closed (not-yet-open) gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open releases any current or future waiter. Safe to call more than once.
func (g *Gate) Open() {
	select {
	case <-g.ch:
		// already open
	default:
		close(g.ch)
	}
}

// Wait blocks until Open is called.
func (g *Gate) Wait() {
	<-g.ch
}

// FIFO is a queue of waiting gates released one at a time, modeling the
// buffer cache's "wake one task waiting for free buffers" rule on
// release, and any other single-consumer-fairness wait list.
type FIFO struct {
	waiters []*Gate
}

// Enqueue adds g to the back of the queue.
func (f *FIFO) Enqueue(g *Gate) {
	f.waiters = append(f.waiters, g)
}

// ReleaseOne opens the gate at the front of the queue, if any, and reports
// whether a waiter was released.
func (f *FIFO) ReleaseOne() bool {
	if len(f.waiters) == 0 {
		return false
	}
	g := f.waiters[0]
	f.waiters = f.waiters[1:]
	g.Open()
	return true
}

// Len reports the number of queued waiters.
func (f *FIFO) Len() int { return len(f.waiters) }
