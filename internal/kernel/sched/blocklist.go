package sched

// BlockList is a FIFO of tasks blocked on some condition external to the
// scheduler (a resource, a pipe, a child exiting). Any subsystem that
// needs to park a task calls Scheduler.Block with one of these; the
// scheduler itself never interprets what a list represents.
type BlockList struct {
	tasks []*Task
}

func NewBlockList() *BlockList {
	return &BlockList{}
}

func (b *BlockList) push(t *Task) {
	b.tasks = append(b.tasks, t)
}

// RemoveAll detaches and returns every task on the list, in FIFO order.
func (b *BlockList) RemoveAll() []*Task {
	out := b.tasks
	b.tasks = nil
	return out
}

// RemoveMatching detaches and returns the first task for which match
// returns true, or nil if none matched.
func (b *BlockList) RemoveMatching(match func(*Task) bool) *Task {
	for i, t := range b.tasks {
		if match(t) {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			return t
		}
	}
	return nil
}

func (b *BlockList) Len() int { return len(b.tasks) }
