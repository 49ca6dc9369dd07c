package sched

import (
	"runtime"
	"strconv"

	"github.com/eliasxyz/epos-sched/kernel/clock"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
)

// transitionKind names the state a thread moves to when it voluntarily
// gives up the CPU, spec.md §4.3's five dispatch-algorithm outcomes
// collapsed to the four a thread can request for itself (toFinishing
// covers both normal Exit and the idle/never-returns case).
type transitionKind int

const (
	toReady transitionKind = iota
	toWaiting
	toSuspended
	toFinishing
)

// transition is what yieldSelf applies to the calling thread before
// picking whatever runs next. queue is only read when kind is
// toWaiting; status only when kind is toFinishing.
type transition struct {
	kind   transitionKind
	queue  *WaitQueue
	status int
}

// yieldSelf implements the dispatch algorithm (spec.md §4.3, steps 1-5)
// for Checkpoint, Yield, Exit and Sleep, each of which funnels through
// it with the transition it wants applied to itself. Join and Pass
// repeat steps 1-2 inline and share steps 3-4 through installNextLocked. self must be the calling goroutine's own
// Thread; nothing here is safe to call on a thread other than the one
// executing it (Go has no way to suspend arbitrary running code, the
// reason Suspend uses override instead of calling yieldSelf directly on
// a thread it doesn't own — see Suspend in ops.go).
func (s *Scheduler) yieldSelf(self *Thread, requested transition) {
	s.mu.Lock()

	now := s.alarm.Elapsed()
	cpuID := self.runningCPU

	// Step 2 (step 1 is taking s.mu above): the outgoing thread's
	// criterion updates its rank and
	// records the LEAVE event before it is reinserted or discarded.
	self.crit.Update(now)
	self.crit.Collect(criterion.Leave, cpuID, now)

	// An external Suspend() may have left an override for the next time
	// this thread reschedules itself; it takes precedence over whatever
	// the caller asked for (spec.md §4.3: "suspend always wins").
	if self.override != nil {
		requested = *self.override
		self.override = nil
	}

	switch requested.kind {
	case toReady:
		self.state = StateReady
		s.linkReady(self)
	case toWaiting:
		self.state = StateWaiting
		self.waitingOn = requested.queue
		self.waitElem = requested.queue.q.Insert(self)
	case toSuspended:
		self.state = StateSuspended
	case toFinishing:
		self.state = StateFinishing
		self.exitStatus = requested.status
		self.crit.Collect(criterion.Finish, cpuID, now)
		s.reap(self)
	}

	// Steps 3-4: pick whoever is most urgent for this CPU, mark it
	// RUNNING, record the DISPATCH event. Caller must hold s.mu; install
	// unlocks it before returning.
	next := s.installNextLocked(cpuID, self, now)

	// Step 5: the actual context switch. next's own goroutine is parked
	// on resumeCh (or is about to be, if it was just Spawned); self's
	// goroutine parks on its own resumeCh in turn, standing in for the
	// machine context a real dispatcher would save and restore.
	if next != self {
		next.resumeCh <- struct{}{}
	}

	if requested.kind == toFinishing {
		// Thread.Exit does not return to its caller, same as EPOS's
		// Thread::exit(): the goroutine running this Entry ends here.
		runtime.Goexit()
	}

	if next != self {
		<-self.resumeCh
	}
}

// installNextLocked picks the most urgent runnable thread for cpuID,
// marks it RUNNING, updates metrics, and releases s.mu. Shared by
// yieldSelf, Join and Pass so all of them funnel the same steps 3-4
// through one place; each caller performs the switch (step 5) itself. Caller must hold s.mu on entry; must not touch s.mu again
// after this returns.
func (s *Scheduler) installNextLocked(cpuID int, self *Thread, now clock.Tick) *Thread {
	next := s.pickNext(cpuID)
	next.state = StateRunning
	next.runningCPU = cpuID
	next.crit.Collect(criterion.Dispatch, cpuID, now)
	s.cpus[cpuID].running = next

	if s.metrics != nil {
		label := strconv.Itoa(cpuID)
		s.metrics.Dispatches.WithLabelValues(label).Inc()
		s.metrics.RunningRank.WithLabelValues(label).Set(float64(next.crit.Rank()))
		if next != self {
			s.metrics.ContextSwitches.Inc()
		}
	}

	s.mu.Unlock()
	return next
}

// pickNext chooses the next thread to run on cpu: the per-CPU ready
// queue's head under every policy except GLLF, where all CPUs share one
// global structure and each CPU consumes the rank-cpu-th element
// (spec.md §3's chosen(k)). Falls back to the CPU's idle thread if
// nothing else is runnable.
func (s *Scheduler) pickNext(cpu int) *Thread {
	cs := s.cpus[cpu]
	if s.global != nil {
		if e, ok := s.global.Chosen(cpu); ok {
			s.global.Remove(e)
			e.Value.readyElem = nil
			s.reportReadyDepth("global", s.global.Len())
			return e.Value
		}
		return cs.idle
	}
	if e, ok := cs.ready.Pop(); ok {
		e.Value.readyElem = nil
		s.reportReadyDepth(strconv.Itoa(cpu), cs.ready.Len())
		return e.Value
	}
	return cs.idle
}

// maybePreempt requests an immediate reschedule on cpuID if the most
// urgent ready thread there now outranks whatever is RUNNING, or if
// that CPU is merely running its idle thread. Without this, a newly
// Spawned or woken thread would have to wait up to one full quantum for
// the next timer tick to notice it, even on an otherwise-idle CPU.
// Read-only under s.mu; the actual yield still only happens at the
// running thread's own next Checkpoint.
func (s *Scheduler) maybePreempt(cpuID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.cpus[cpuID]
	running := cs.running
	if running == nil {
		return
	}
	var headRank int64
	var have bool
	if s.global != nil {
		if e, ok := s.global.Chosen(cpuID); ok {
			headRank, have = e.Rank(), true
		}
	} else if e, ok := cs.ready.Head(); ok {
		headRank, have = e.Rank(), true
	}
	if !have {
		return
	}
	if running == cs.idle || headRank < running.Rank() {
		running.requestPreempt()
	}
}

// maybePreemptAll checks every CPU, used when a thread joins the shared
// global (GLLF) structure instead of one fixed CPU's queue, since any
// head might now be more urgent than what it currently runs.
func (s *Scheduler) maybePreemptAll() {
	for i := range s.cpus {
		s.maybePreempt(i)
	}
}

// linkReady inserts t into the ready structure it belongs to: its own
// CPU's head, or the shared global structure under GLLF.
func (s *Scheduler) linkReady(t *Thread) {
	if s.global != nil {
		t.readyElem = s.global.Insert(t)
		s.reportReadyDepth("global", s.global.Len())
		return
	}
	t.readyElem = s.cpus[t.home].ready.Insert(t)
	s.reportReadyDepth(strconv.Itoa(t.home), s.cpus[t.home].ready.Len())
}

// reportReadyDepth updates the ready-queue-depth gauge for head, a no-op
// if no metrics registry was configured.
func (s *Scheduler) reportReadyDepth(head string, depth int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReadyQueueDepth.WithLabelValues(head).Set(float64(depth))
}
