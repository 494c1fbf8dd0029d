// Package sched provides a tick-driven task scheduler. Tasks are owned by an
// entity instance id so that all of an entity's timers can be cancelled in one
// sweep when it is destroyed.
package sched

import (
	"sort"
	"time"
)

// Handle identifies a scheduled task.
type Handle struct {
	Owner int32
	Seq   uint64
}

type task struct {
	handle    Handle
	fn        func()
	remaining int // ticks until fire
	period    int // 0 for one-shot
	dead      bool
}

// Scheduler runs tasks on the game-loop goroutine. Not safe for concurrent
// use; Advance is called once per tick from the loop.
type Scheduler struct {
	tickRate time.Duration
	tasks    map[Handle]*task
	byOwner  map[int32][]Handle
	nextSeq  uint64
}

func New(tickRate time.Duration) *Scheduler {
	return &Scheduler{
		tickRate: tickRate,
		tasks:    make(map[Handle]*task),
		byOwner:  make(map[int32][]Handle),
	}
}

// Every schedules fn to run repeatedly with the given period, first firing
// after one period elapses.
func (s *Scheduler) Every(owner int32, period time.Duration, fn func()) Handle {
	ticks := s.toTicks(period)
	return s.add(owner, fn, ticks, ticks)
}

// After schedules fn to run once after the given delay.
func (s *Scheduler) After(owner int32, delay time.Duration, fn func()) Handle {
	return s.add(owner, fn, s.toTicks(delay), 0)
}

func (s *Scheduler) add(owner int32, fn func(), remaining, period int) Handle {
	s.nextSeq++
	h := Handle{Owner: owner, Seq: s.nextSeq}
	s.tasks[h] = &task{handle: h, fn: fn, remaining: remaining, period: period}
	s.byOwner[owner] = append(s.byOwner[owner], h)
	return h
}

// Cancel removes a single task. Cancelling an already-fired one-shot or an
// unknown handle is a no-op.
func (s *Scheduler) Cancel(h Handle) {
	if t, ok := s.tasks[h]; ok {
		t.dead = true
		delete(s.tasks, h)
		s.dropOwnerHandle(h)
	}
}

// CancelOwner removes every task owned by the given instance id.
func (s *Scheduler) CancelOwner(owner int32) {
	for _, h := range s.byOwner[owner] {
		if t, ok := s.tasks[h]; ok {
			t.dead = true
			delete(s.tasks, h)
		}
	}
	delete(s.byOwner, owner)
}

// Advance moves the scheduler forward one tick and runs due tasks in
// creation order. Tasks scheduled or cancelled by a running task take
// effect immediately; a due task cancelled by an earlier due task in the
// same tick does not fire.
func (s *Scheduler) Advance() {
	due := make([]*task, 0, 8)
	for _, t := range s.tasks {
		t.remaining--
		if t.remaining <= 0 {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].handle.Seq < due[j].handle.Seq })
	for _, t := range due {
		if t.dead {
			continue
		}
		if t.period > 0 {
			t.remaining = t.period
		} else {
			t.dead = true
			delete(s.tasks, t.handle)
			s.dropOwnerHandle(t.handle)
		}
		t.fn()
	}
}

// dropOwnerHandle removes a spent handle from the owner index. Without this
// the index grows unbounded for long-lived owners that are never swept, like
// the world's respawn tasks.
func (s *Scheduler) dropOwnerHandle(h Handle) {
	hs := s.byOwner[h.Owner]
	for i, other := range hs {
		if other == h {
			s.byOwner[h.Owner] = append(hs[:i], hs[i+1:]...)
			break
		}
	}
	if len(s.byOwner[h.Owner]) == 0 {
		delete(s.byOwner, h.Owner)
	}
}

// Len reports the number of live tasks.
func (s *Scheduler) Len() int { return len(s.tasks) }

func (s *Scheduler) toTicks(d time.Duration) int {
	ticks := int((d + s.tickRate/2) / s.tickRate)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
