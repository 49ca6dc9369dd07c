package criterion

import (
	"sync"

	"github.com/eliasxyz/epos-sched/kernel/clock"
)

// LLF ranks periodic threads by dynamic laxity: deadline minus (elapsed
// + remaining capacity). Grounded on scheduler.cc: LLF::update()
// decrements capacity by the time consumed since the job's last
// dispatch, then recomputes rank = deadline - (elapsed + capacity).
//
// The source tracks a has_stopped_execution flag set by the dispatcher
// on preemption and cleared inside update(); this rendition instead
// calls Update on every dispatch-out (the only point Update is ever
// invoked, per the dispatch algorithm's step 2) and a separate Renew on
// period rollover, so "decrement on suspension" / "restore on job
// completion" fall out of which method the caller invokes rather than
// a flag threaded through both. Equivalent effect, fewer moving parts.
type LLF struct {
	base
	mu            sync.Mutex
	deadline      clock.Tick // absolute deadline of the current job
	period        clock.Tick
	capacity      clock.Tick // full per-job capacity, restored on Renew
	remaining     clock.Tick // capacity left in the current job
	lastDispatch  clock.Tick
	dispatchedYet bool
}

// NewLLF constructs an LLF criterion for a job with the given absolute
// deadline, period and capacity (ticks), pinned to queue cpu. Use
// cpu = -1 for the global multi-head structure (see NewGLLF, which is
// this constructor with that convention baked in).
func NewLLF(alarm *clock.Alarm, deadline, period, capacity clock.Tick, cpu, cpus int) *LLF {
	l := &LLF{
		deadline:  deadline,
		period:    period,
		capacity:  capacity,
		remaining: capacity,
	}
	now := alarm.Elapsed()
	l.base = newBase(PERIODIC+Rank(deadline)-Rank(now)-Rank(capacity), cpu, cpus)
	return l
}

// NewGLLF is NewLLF inserted into the global ready structure (queue -1)
// instead of a fixed CPU head, per spec.md's GLLF variant: "identical
// rank computation, but inserted into the global multi-head structure."
func NewGLLF(alarm *clock.Alarm, deadline, period, capacity clock.Tick, cpus int) *LLF {
	return NewLLF(alarm, deadline, period, capacity, -1, cpus)
}

// Update decrements remaining capacity by the time consumed since the
// job's last dispatch, then recomputes rank as deadline - (now +
// remaining), while the rank is still in the PERIODIC..APERIODIC band.
func (l *LLF) Update(now clock.Tick) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dispatchedYet {
		l.remaining -= now - l.lastDispatch
		if l.remaining < 0 {
			l.remaining = 0
		}
	}
	if l.rank >= PERIODIC && l.rank < APERIODIC {
		l.rank = PERIODIC + Rank(l.deadline) - Rank(now) - Rank(l.remaining)
	}
}

// Collect records the dispatch timestamp LLF.Update needs on the next
// LEAVE to know how much capacity this stint consumed.
func (l *LLF) Collect(ev Event, cpu int, now clock.Tick) {
	l.base.Collect(ev, cpu, now)
	if ev == Dispatch {
		l.mu.Lock()
		l.lastDispatch = now
		l.dispatchedYet = true
		l.mu.Unlock()
	}
}

func (l *LLF) Charge() bool { return true }

// Renew is called by the periodic-thread wrapper when a job's period
// elapses: capacity is restored to its configured full value and the
// deadline advances by one period, per spec.md's "on job completion
// (next period) capacity is restored."
func (l *LLF) Renew(now clock.Tick) {
	l.mu.Lock()
	consumed := l.capacity - l.remaining
	util := 0.0
	if l.period > 0 {
		util = float64(consumed) / float64(l.period)
	}
	l.deadline += l.period
	l.remaining = l.capacity
	l.mu.Unlock()
	l.Statistics().SetJobUtilization(util)
}

// Laxity returns the criterion's current laxity in ticks: deadline -
// (now + remaining capacity). Exposed for tests asserting the universal
// LLF invariant directly rather than through Rank's PERIODIC offset.
func (l *LLF) Laxity(now clock.Tick) clock.Tick {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deadline - now - l.remaining
}

// RemainingCapacity returns the capacity left in the current job.
func (l *LLF) RemainingCapacity() clock.Tick {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}
