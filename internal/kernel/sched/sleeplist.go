package sched

import "container/list"

// sleepList keeps sleeping tasks sorted by wakeup tick, ascending, the
// same doubly-linked-list discipline buffercache's LRU/dirty lists use
// for their own ordering invariant.
type sleepList struct {
	l *list.List // element.Value is *Task
}

func newSleepList() *sleepList {
	return &sleepList{l: list.New()}
}

// insert performs a sorted insert by wakeupTick, walking from the tail
// since a newly-sleeping task usually wakes later than tasks already
// queued.
func (s *sleepList) insert(t *Task) {
	for e := s.l.Back(); e != nil; e = e.Prev() {
		if e.Value.(*Task).wakeupTick <= t.wakeupTick {
			s.l.InsertAfter(t, e)
			return
		}
	}
	s.l.PushFront(t)
}

func (s *sleepList) remove(t *Task) {
	for e := s.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*Task) == t {
			s.l.Remove(e)
			return
		}
	}
}

// due pops every task whose wakeupTick is <= now, in wakeup order.
func (s *sleepList) due(now uint64) []*Task {
	var woken []*Task
	for e := s.l.Front(); e != nil; {
		next := e.Next()
		t := e.Value.(*Task)
		if t.wakeupTick > now {
			break
		}
		woken = append(woken, t)
		s.l.Remove(e)
		e = next
	}
	return woken
}

func (s *sleepList) len() int { return s.l.Len() }
