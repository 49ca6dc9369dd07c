package sched

import (
	"github.com/eliasxyz/epos-sched/kernel/config"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/ready"
)

// WaitQueue is a rank-ordered parking lot for threads blocked on a
// synchronizer (mutex, semaphore, condition variable), spec.md §5's
// "SYNC HOOKS" collaborator. It is nothing more than a ready.Queue
// scoped to one resource: Wakeup always wakes the most urgent waiter
// first, same as the ready structure picks the most urgent runnable
// thread first.
type WaitQueue struct {
	q *ready.Queue[*Thread]
}

// NewWaitQueue returns an empty wait queue, normally stored alongside
// whatever lock/semaphore/condition it guards.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{q: ready.New[*Thread]()}
}

// Len reports how many threads are currently parked.
func (w *WaitQueue) Len() int { return w.q.Len() }

// Sleep parks the calling thread (self) on q until a matching Wakeup,
// implementing spec.md §5's sleep(q) hook. Must be called by a thread on
// its own goroutine, same restriction as every other yieldSelf entry
// point.
func (s *Scheduler) Sleep(self *Thread, q *WaitQueue) {
	s.yieldSelf(self, transition{kind: toWaiting, queue: q})
}

// Wakeup unparks q's most urgent waiter, moving it back to READY on its
// home CPU, and reports whether anyone was woken. Mirrors spec.md §5's
// wakeup(q), used for a single-permit release (mutex unlock, one
// semaphore signal).
func (s *Scheduler) Wakeup(q *WaitQueue) bool {
	s.mu.Lock()
	e, ok := q.q.Pop()
	if !ok {
		s.mu.Unlock()
		return false
	}
	t := e.Value
	t.waitingOn = nil
	t.waitElem = nil
	t.state = StateReady
	s.linkReady(t)
	home := t.home
	s.mu.Unlock()

	if s.global != nil {
		s.maybePreemptAll()
	} else {
		s.maybePreempt(home)
	}
	return true
}

// WakeupAll unparks every waiter on q, implementing spec.md §5's
// wakeup_all(q) (condition-variable broadcast).
func (s *Scheduler) WakeupAll(q *WaitQueue) {
	for s.Wakeup(q) {
	}
}

// Prioritize boosts holder to the highest rank among waiters — priority
// inheritance — or to the scheduler's configured ceiling rank —
// priority ceiling — depending on config.Traits.InversionProtocol,
// implementing spec.md §4.3's prioritize(q) hook. Deprioritize undoes it
// when the resource is released. Both operate through
// criterion.Criterion.Boost/Unboost rather than swapping holder's
// criterion outright, so a real-time holder's deadline/period/capacity
// state survives the boost.
func (s *Scheduler) Prioritize(holder *Thread, waiters *WaitQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.traits.InversionProtocol() {
	case config.NoInversionProtocol:
		return
	case config.PriorityCeiling:
		holder.crit.Boost(criterion.Rank(s.traits.CeilingRank()))
	default: // config.PriorityInheritance
		head, ok := waiters.q.Head()
		if !ok {
			return
		}
		if r := criterion.Rank(head.Value.Rank()); r < holder.crit.Rank() {
			holder.crit.Boost(r)
		}
	}
	if holder.readyElem != nil {
		s.reinsertLocked(holder)
	}
}

// Deprioritize clears whatever boost Prioritize applied, restoring
// holder's own computed rank. Since this can only ever make holder
// relatively less urgent, it re-checks whether some other now-more-
// urgent thread should preempt it.
func (s *Scheduler) Deprioritize(holder *Thread) {
	s.mu.Lock()
	holder.crit.Unboost()
	if holder.readyElem != nil {
		s.reinsertLocked(holder)
	}
	home := holder.home
	s.mu.Unlock()

	if s.global != nil {
		s.maybePreemptAll()
	} else {
		s.maybePreempt(home)
	}
}

// reinsertLocked re-sorts holder's ready-structure position after its
// rank changed underneath it. Caller must hold s.mu.
func (s *Scheduler) reinsertLocked(holder *Thread) {
	if s.global != nil {
		s.global.Reinsert(holder.readyElem)
		return
	}
	s.cpus[holder.home].ready.Reinsert(holder.readyElem)
}
