package sched

import "github.com/eliasxyz/epos-sched/kernel/criterion"

// Yield gives up the CPU voluntarily, re-entering the ready structure at
// whatever rank its criterion currently reports — EPOS's Thread::yield(),
// spec.md §4.3's toReady outcome with no side condition.
func (s *Scheduler) Yield(self *Thread) {
	s.yieldSelf(self, transition{kind: toReady})
}

// Exit retires self with status, waking anything parked in Join on it.
// Never returns to its caller: the calling goroutine ends inside
// yieldSelf via runtime.Goexit, mirroring EPOS's Thread::exit(), which
// the source also documents as never returning.
func (s *Scheduler) Exit(self *Thread, status int) {
	s.yieldSelf(self, transition{kind: toFinishing, status: status})
}

// Suspend moves t out of contention for the CPU without the caller
// needing to be t itself, implementing spec.md §4.3's suspend(): t keeps
// running until its own next reschedule point (Checkpoint, Yield, a
// blocking Sleep), at which point the pending override takes it to
// SUSPENDED instead of wherever it was headed. If t is not currently
// RUNNING anywhere, it is suspended immediately, and unlinked from
// whichever ready or wait queue holds it, since there is no in-flight
// reschedule to intercept.
func (s *Scheduler) Suspend(t *Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != StateRunning {
		t.state = StateSuspended
		if t.waitElem != nil && t.waitingOn != nil {
			t.waitingOn.q.Remove(t.waitElem)
			t.waitElem = nil
			t.waitingOn = nil
		}
		if t.readyElem != nil {
			if s.global != nil {
				s.global.Remove(t.readyElem)
			} else {
				s.cpus[t.home].ready.Remove(t.readyElem)
			}
			t.readyElem = nil
		}
		return
	}
	t.override = &transition{kind: toSuspended}
	t.requestPreempt()
	s.ctrl.IPI(t.runningCPU)
}

// Resume moves a SUSPENDED thread back to READY, implementing spec.md
// §4.3's resume(). A no-op on any thread not currently SUSPENDED.
func (s *Scheduler) Resume(t *Thread) {
	s.mu.Lock()
	if t.state != StateSuspended {
		s.mu.Unlock()
		return
	}
	t.state = StateReady
	s.linkReady(t)
	home := t.home
	s.mu.Unlock()

	if s.global != nil {
		s.maybePreemptAll()
	} else {
		s.maybePreempt(home)
	}
}

// Pass yields self directly to target without an intervening trip
// through the ready structure's normal ordering, EPOS's Thread::pass()
// hand-off optimization. A no-op when target is not READY. When target
// is READY but pinned to another CPU's queue, Pass degrades to an
// ordinary Yield.
func (s *Scheduler) Pass(self, target *Thread) {
	s.mu.Lock()
	if target.state != StateReady {
		s.mu.Unlock()
		return
	}
	cpuID := self.runningCPU
	now := s.alarm.Elapsed()
	self.crit.Update(now)
	self.crit.Collect(criterion.Leave, cpuID, now)
	self.state = StateReady
	s.linkReady(self)

	eligible := s.global != nil || target.home == cpuID
	if !eligible {
		next := s.installNextLocked(cpuID, self, now)
		s.handoff(self, next)
		return
	}

	if s.global != nil {
		s.global.Remove(target.readyElem)
	} else {
		s.cpus[cpuID].ready.Remove(target.readyElem)
	}
	target.readyElem = nil
	target.state = StateRunning
	target.runningCPU = cpuID
	target.crit.Collect(criterion.Dispatch, cpuID, now)
	s.cpus[cpuID].running = target
	s.mu.Unlock()
	s.handoff(self, target)
}

// handoff performs step 5 of the dispatch algorithm once the scheduler
// lock guarding the decision has already been released: switch to next
// and block until self is dispatched again.
func (s *Scheduler) handoff(self, next *Thread) {
	if next == self {
		return
	}
	next.resumeCh <- struct{}{}
	<-self.resumeCh
}

// Join blocks caller until target exits, returning the status target
// passed to Exit. caller must be the goroutine's own thread, since
// blocking is implemented by yielding caller's CPU to whoever runs next
// (spec.md §4.3: Join is "sleep(target.join_queue) until woken by
// target's Exit"). Panics via InvariantError if target == caller (a
// thread cannot join itself) or if target already has a joiner parked
// (spec.md §3: "at most one joiner").
func (s *Scheduler) Join(caller, target *Thread) int {
	if caller == target {
		invariant("Join", "thread cannot join itself")
	}

	s.mu.Lock()
	if target.joinQueue.Len() > 0 {
		s.mu.Unlock()
		invariant("Join", "target already has a joiner")
	}
	if target.state == StateFinishing {
		status := target.exitStatus
		s.mu.Unlock()
		return status
	}

	now := s.alarm.Elapsed()
	cpuID := caller.runningCPU
	caller.crit.Update(now)
	caller.crit.Collect(criterion.Leave, cpuID, now)
	caller.state = StateWaiting
	caller.waitingOn = target.joinQueue
	caller.waitElem = target.joinQueue.q.Insert(caller)

	next := s.installNextLocked(cpuID, caller, now)
	s.handoff(caller, next)

	return target.exitStatus
}

// Priority replaces self's criterion outright — EPOS's
// Thread::priority(c) — used for a permanent policy change rather than
// the temporary ceiling/inheritance overlay Prioritize/Deprioritize
// apply via Boost/Unboost. If self is currently linked into a ready
// structure, it is removed and reinserted at the new criterion's rank
// and a preemption is requested wherever that reinsertion now outranks
// whatever is RUNNING, per spec.md §4.3: "replaces criterion; if linked,
// removes and reinserts; may preempt."
func (s *Scheduler) Priority(self *Thread, c criterion.Criterion) {
	s.mu.Lock()
	self.crit = c
	linked := self.readyElem != nil
	global := s.global != nil
	home := self.home
	if linked {
		if global {
			s.global.Reinsert(self.readyElem)
		} else {
			s.cpus[home].ready.Reinsert(self.readyElem)
		}
	}
	s.mu.Unlock()

	if !linked {
		return
	}
	if global {
		s.maybePreemptAll()
	} else {
		s.maybePreempt(home)
	}
}
