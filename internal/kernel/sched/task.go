// Package sched implements the scheduler's execution substrate: a
// red-black-tree-equivalent ready queue ordered by virtual runtime (a
// B-tree keyed by (vruntime, insertion sequence), the pop-leftmost/insert-only contract
// a balanced tree or a B-tree equally satisfy), a time-ordered sleep
// list, block lists, and the clock-tick preemption rule.
package sched

import "fmt"

// State is one of the seven task lifecycle states. A non-ready task
// lives in at most one intrusive list (the sleep list, or some block
// list) at a time.
type State int

const (
	Init State = iota
	Running
	Ready
	Blocked
	Sleeping
	Waiting
	Died
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Sleeping:
		return "sleeping"
	case Waiting:
		return "waiting"
	case Died:
		return "died"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NiceMin/NiceMax bound the nice value CFS accepts.
const (
	NiceMin = -20
	NiceMax = 19
)

// NICE0Weight is the priority weight of a nice-0 task: every other
// task's weight is scaled relative to it.
const NICE0Weight = 1024

// niceToWeight is the standard CFS nice-to-weight table: niceToWeight[nice
// - NiceMin] gives the weight for that nice value. index 20 (nice 0) is
// 1024, matching NICE0Weight.
var niceToWeight = [NiceMax - NiceMin + 1]uint32{
	88761, 71755, 56483, 46273, 36291,
	29154, 23254, 18705, 14949, 11916,
	9548, 7620, 6100, 4904, 3906,
	3121, 2501, 1991, 1586, 1277,
	1024, 820, 655, 526, 423,
	335, 272, 215, 172, 137,
	110, 87, 70, 56, 45,
	36, 29, 23, 18, 15,
}

// WeightForNice looks up the weight for a nice value, clamping to
// [NiceMin, NiceMax].
func WeightForNice(nice int) uint32 {
	if nice < NiceMin {
		nice = NiceMin
	}
	if nice > NiceMax {
		nice = NiceMax
	}
	return niceToWeight[nice-NiceMin]
}

// Task is the scheduler-visible slice of a process control block: the
// fields schedule(), the clock tick, and the sleep/block lists read and
// mutate. The rest of a task (fd table, address space, ...) lives in
// package proc, which embeds a *Task.
type Task struct {
	ID    uint32
	Nice  int
	State State

	weight         uint32
	vruntime       uint64
	sliceTicks     int
	remainingTicks int
	wakeupTick     uint64

	seq uint64 // insertion sequence, breaks vruntime ties in the ready tree
}

// NewTask creates a task at the given nice level, in the Init state,
// with zero accumulated vruntime.
func NewTask(id uint32, nice int) *Task {
	return &Task{
		ID:     id,
		Nice:   nice,
		State:  Init,
		weight: WeightForNice(nice),
	}
}

// Weight returns the task's scheduling weight, derived from Nice.
func (t *Task) Weight() uint32 { return t.weight }

// VRuntime returns the task's accumulated virtual runtime.
func (t *Task) VRuntime() uint64 { return t.vruntime }

// RemainingTicks returns how many ticks remain in the task's current
// time slice.
func (t *Task) RemainingTicks() int { return t.remainingTicks }
