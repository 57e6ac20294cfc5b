package sched

import "github.com/google/btree"

// readyQueue is the vruntime-ordered ready tree. The source design notes
// that a B-tree keyed by (vruntime, id) is equivalent to a red-black
// tree for this purpose: the only operations a scheduler needs are
// pop-leftmost and insert, and btree.BTreeG gives both directly.
type readyQueue struct {
	tree *btree.BTreeG[*Task]
}

const readyQueueDegree = 32

func newReadyQueue() *readyQueue {
	less := func(a, b *Task) bool {
		if a.vruntime != b.vruntime {
			return a.vruntime < b.vruntime
		}
		return a.seq < b.seq
	}
	return &readyQueue{tree: btree.NewG(readyQueueDegree, less)}
}

func (q *readyQueue) insert(t *Task) {
	q.tree.ReplaceOrInsert(t)
}

func (q *readyQueue) remove(t *Task) {
	q.tree.Delete(t)
}

// popLeftmost removes and returns the task with the smallest (vruntime,
// seq) key, or nil if the queue is empty.
func (q *readyQueue) popLeftmost() *Task {
	t, ok := q.tree.DeleteMin()
	if !ok {
		return nil
	}
	return t
}

// peekLeftmost returns the smallest-keyed task without removing it.
func (q *readyQueue) peekLeftmost() *Task {
	t, ok := q.tree.Min()
	if !ok {
		return nil
	}
	return t
}

func (q *readyQueue) totalWeight() uint64 {
	var sum uint64
	q.tree.Ascend(func(t *Task) bool {
		sum += uint64(t.weight)
		return true
	})
	return sum
}

func (q *readyQueue) len() int { return q.tree.Len() }
