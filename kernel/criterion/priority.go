package criterion

import "github.com/eliasxyz/epos-sched/kernel/clock"

// Priority is a fixed-priority criterion: rank never changes except via
// an explicit Thread.priority(c) replacement, which constructs a new
// Priority rather than mutating one in place.
type Priority struct {
	base
}

// NewPriority constructs a fixed-priority criterion pinned to queue cpu.
// rank IDLE is reserved for the per-CPU idle thread.
func NewPriority(rank Rank, cpu, cpus int) *Priority {
	return &Priority{base: newBase(rank, cpu, cpus)}
}

func (p *Priority) Update(now clock.Tick)                {}
func (p *Priority) Collect(e Event, cpu int, now clock.Tick) { p.base.Collect(e, cpu, now) }
func (p *Priority) Charge() bool                          { return false }

// FCFS ranks threads by arrival order: rank is frozen at the elapsed
// tick count observed at construction, so insertion order is naturally
// FIFO without the ready structure needing a separate sequence number.
// Grounded on scheduler.cc's FCFS::FCFS: rank = (p == IDLE) ? IDLE :
// Alarm::elapsed().
type FCFS struct {
	base
}

// NewFCFS constructs an FCFS criterion. Pass rank IDLE to preserve the
// idle thread's sentinel instead of timestamping it.
func NewFCFS(alarm *clock.Alarm, rank Rank, cpu, cpus int) *FCFS {
	r := rank
	if r != IDLE {
		r = Rank(alarm.Elapsed())
	}
	return &FCFS{base: newBase(r, cpu, cpus)}
}

func (f *FCFS) Update(now clock.Tick)                   {}
func (f *FCFS) Collect(e Event, cpu int, now clock.Tick) { f.base.Collect(e, cpu, now) }
func (f *FCFS) Charge() bool                           { return false }

// RoundRobin is Priority with Charge() true: every thread carries the
// same fixed rank, so the ready structure's FIFO insertion order is what
// actually rotates contenders, and the per-CPU timer tick is what forces
// that rotation to happen once per quantum instead of only on a
// voluntary yield/sleep.
type RoundRobin struct {
	base
}

// NewRoundRobin constructs a round-robin criterion at a shared rank
// (typically NORMAL), pinned to queue cpu.
func NewRoundRobin(rank Rank, cpu, cpus int) *RoundRobin {
	return &RoundRobin{base: newBase(rank, cpu, cpus)}
}

func (r *RoundRobin) Update(now clock.Tick)                   {}
func (r *RoundRobin) Collect(e Event, cpu int, now clock.Tick) { r.base.Collect(e, cpu, now) }
func (r *RoundRobin) Charge() bool                           { return true }
