package sched

// SchedLatencyTicks is the target period (in scheduler ticks) within
// which every ready task should get at least one turn, the numerator of
// the time-slice formula.
const SchedLatencyTicks = 10

// MinTimeslice is the smallest slice a task is ever given, regardless of
// how many tasks are ready.
const MinTimeslice = 1

// WakeupGranularityTicks scales the vruntime bonus a task receives when
// it unblocks, rewarding tasks that sleep often (interactive-ish) over
// ones that hog the CPU.
const WakeupGranularityTicks = 1

// Scheduler is a single CFS-style run queue: one ready tree, one sleep
// list, and the currently running task. A multi-CPU design would run
// one of these per CPU; this simulation runs exactly one.
type Scheduler struct {
	ready   *readyQueue
	sleep   *sleepList
	running *Task
	idle    *Task

	tick        uint64
	minVRuntime uint64
	nextSeq     uint64
}

// New creates a scheduler with idle as the fallback task run when the
// ready tree is empty. idle is never inserted into the ready tree and
// never sleeps or blocks.
func New(idle *Task) *Scheduler {
	idle.State = Running
	return &Scheduler{
		ready:   newReadyQueue(),
		sleep:   newSleepList(),
		running: idle,
		idle:    idle,
	}
}

// Tick returns the current tick count.
func (s *Scheduler) Tick() uint64 { return s.tick }

// Running returns the task currently occupying the CPU.
func (s *Scheduler) Running() *Task { return s.running }

// Enqueue admits a newly created or newly runnable task into the ready
// tree. Its vruntime is clamped up to the tree's current minimum so a
// task that was idle for a long time (vruntime stuck at 0) cannot starve
// everyone else by looking infinitely deserving of the CPU.
func (s *Scheduler) Enqueue(t *Task) {
	if t.vruntime < s.minVRuntime {
		t.vruntime = s.minVRuntime
	}
	t.State = Ready
	t.seq = s.nextSeq
	s.nextSeq++
	s.ready.insert(t)
}

// weightOfReady returns the ready tree's total weight, plus the running
// task's weight if it is not the idle task (the running task competes
// for the same CPU share even while off the tree).
func (s *Scheduler) weightOfReady() uint64 {
	w := s.ready.totalWeight()
	if s.running != nil && s.running != s.idle {
		w += uint64(s.running.weight)
	}
	return w
}

// sliceFor computes slice_ms = max(MIN_TIMESLICE, weight*SCHED_LATENCY/total_weight).
func (s *Scheduler) sliceFor(t *Task) int {
	total := s.weightOfReady()
	if total == 0 {
		return SchedLatencyTicks
	}
	slice := int(uint64(t.weight) * SchedLatencyTicks / total)
	if slice < MinTimeslice {
		slice = MinTimeslice
	}
	return slice
}

// Schedule picks the next task to run and returns it. The outgoing
// task's vruntime is charged for the ticks it actually consumed
// (ranTicks, 0 for a task that never ran, e.g. one that just exited
// without being preempted) before being reinserted, unless it is no
// longer Running (blocked, sleeping, or dead) or is the idle task.
func (s *Scheduler) Schedule(ranTicks int) *Task {
	out := s.running
	if out != nil && out != s.idle && ranTicks > 0 {
		out.vruntime += uint64(ranTicks) * NICE0Weight / uint64(out.weight)
	}
	if out != nil && out.State == Running && out != s.idle {
		s.Enqueue(out)
	}

	next := s.ready.popLeftmost()
	if next == nil {
		s.running = s.idle
		s.idle.State = Running
		return s.idle
	}

	if next.vruntime > s.minVRuntime {
		s.minVRuntime = next.vruntime
	}
	next.State = Running
	next.sliceTicks = s.sliceFor(next)
	next.remainingTicks = next.sliceTicks
	s.running = next
	return next
}

// ClockTick advances the scheduler by one tick: it wakes any sleepers
// whose time has come, decrements the running task's remaining slice,
// and re-dispatches when the running task is exhausted, the CPU was
// idle and work just became ready, or a wakeup populated an empty ready
// tree. It returns the task that should run after the tick (possibly
// unchanged).
func (s *Scheduler) ClockTick() *Task {
	s.tick++

	woken := s.sleep.due(s.tick)
	for _, t := range woken {
		s.wakeupBonus(t)
		s.Enqueue(t)
	}

	wasIdle := s.running == s.idle
	exhausted := false
	if s.running != s.idle {
		s.running.remainingTicks--
		if s.running.remainingTicks <= 0 {
			exhausted = true
		}
	}

	switch {
	case exhausted:
		ran := s.running.sliceTicks
		return s.Schedule(ran)
	case wasIdle && s.ready.len() > 0:
		return s.Schedule(0)
	case len(woken) > 0 && s.running == s.idle:
		return s.Schedule(0)
	default:
		return s.running
	}
}

// Sleep converts ms into ticks (minimum 1), marks t Sleeping, inserts it
// into the sorted sleep list at tick+ticks, and dispatches a new task
// since t can no longer run.
func (s *Scheduler) Sleep(t *Task, ms int, tickMs int) *Task {
	ticks := ms / tickMs
	if ticks < 1 {
		ticks = 1
	}
	t.State = Sleeping
	t.wakeupTick = s.tick + uint64(ticks)
	s.sleep.insert(t)
	if t == s.running {
		return s.Schedule(t.sliceTicks - t.remainingTicks)
	}
	return s.running
}

// wakeupBonus applies the sleeper-fairness bonus: subtract
// WAKEUP_GRAN*NICE0_WEIGHT/weight from vruntime, saturating at 0 rather
// than underflowing, so a task that slept briefly doesn't come back
// looking like it ran a negative amount of time.
func (s *Scheduler) wakeupBonus(t *Task) {
	bonus := WakeupGranularityTicks * NICE0Weight / uint64(t.weight)
	if bonus > t.vruntime {
		t.vruntime = 0
	} else {
		t.vruntime -= bonus
	}
}

// Block removes t from the CPU (it must be Running) and pushes it onto
// list, returning the newly dispatched task.
func (s *Scheduler) Block(t *Task, list *BlockList) *Task {
	t.State = Blocked
	list.push(t)
	if t == s.running {
		return s.Schedule(t.sliceTicks - t.remainingTicks)
	}
	return s.running
}

// Unblock removes t from list's accounting view (the caller already
// popped it via BlockList.RemoveAll/RemoveMatching), applies the
// sleeper-fairness bonus, and admits it back into the ready tree.
func (s *Scheduler) Unblock(t *Task) {
	s.wakeupBonus(t)
	s.Enqueue(t)
}

// Yield voluntarily gives up the remainder of the running task's slice.
func (s *Scheduler) Yield() *Task {
	if s.running == s.idle {
		return s.running
	}
	ran := s.running.sliceTicks - s.running.remainingTicks
	return s.Schedule(ran)
}

// Exit removes t from the CPU permanently; it is never reinserted.
func (s *Scheduler) Exit(t *Task) *Task {
	t.State = Died
	if t == s.running {
		return s.Schedule(0)
	}
	return s.running
}
