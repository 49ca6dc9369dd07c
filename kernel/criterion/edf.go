package criterion

import (
	"sync"

	"github.com/eliasxyz/epos-sched/kernel/clock"
)

// EDF ranks periodic threads by absolute deadline, recomputed on every
// dispatch-out. Grounded on scheduler.cc: EDF::update() sets
// priority = elapsed + deadline whenever the current rank is still in
// the PERIODIC..APERIODIC band.
type EDF struct {
	base
	mu       sync.Mutex
	deadline clock.Tick // relative deadline, in ticks
	period   clock.Tick
	capacity clock.Tick
	alarm    *clock.Alarm
}

// NewEDF constructs an EDF criterion for a job with the given relative
// deadline/period/capacity (all already in ticks; alarm only supplies
// the current elapsed count for the initial rank), pinned to
// queue cpu (EDF is a uniprocessor criterion in this spec).
func NewEDF(alarm *clock.Alarm, deadline, period, capacity clock.Tick, cpu, cpus int) *EDF {
	e := &EDF{
		deadline: deadline,
		period:   period,
		capacity: capacity,
		alarm:    alarm,
	}
	e.base = newBase(PERIODIC+Rank(alarm.Elapsed())+Rank(deadline), cpu, cpus)
	return e
}

// Update recomputes rank as elapsed + deadline, per scheduler.cc.
func (e *EDF) Update(now clock.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rank >= PERIODIC && e.rank < APERIODIC {
		e.rank = PERIODIC + Rank(now) + Rank(e.deadline)
	}
}

// Renew is called by the periodic-thread wrapper (rt.Periodic) when a
// job's period elapses. EDF's deadline is always relative-to-now at the
// next Update, so Renew itself has nothing to advance; it exists to
// satisfy the same Renewer contract LLF.Renew does, so rt.Periodic never
// needs to know which variant it is driving.
func (e *EDF) Renew(now clock.Tick) {}

func (e *EDF) Collect(ev Event, cpu int, now clock.Tick) { e.base.Collect(ev, cpu, now) }
func (e *EDF) Charge() bool                             { return true }

// Deadline returns the job's configured relative deadline, in ticks.
func (e *EDF) Deadline() clock.Tick {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deadline
}
