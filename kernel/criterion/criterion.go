// Package criterion implements the pluggable scheduling policies carried
// by every thread: fixed priority, FCFS, round-robin, EDF, LLF and GLLF.
// Grounded on EPOS's Criterion hierarchy (include/process.h) and the
// variant update() rules in src/api/scheduler.cc. A Criterion depends
// only on clock.Tick/Alarm, never on sched.Thread or the ready structure,
// so the dependency graph stays acyclic: clock -> criterion -> ready ->
// sched.
package criterion

import (
	"sync"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/clock"
)

// Rank is a Criterion's sort key in the ready structure. Smaller ranks
// dispatch first.
type Rank int64

// Sentinel ranks, mirroring EPOS's Criterion enum (process.h lines
// 45-56). CEILING is more urgent than any ordinary sentinel so a
// ceiling-boosted holder always outranks every unboosted waiter; IDLE is
// less urgent than anything so the idle thread never preempts a real
// thread.
const (
	CEILING Rank = -1
	MAIN    Rank = 0
	HIGH    Rank = 1
	NORMAL  Rank = 2
	LOW     Rank = 3

	// PERIODIC..APERIODIC bounds the band real-time criteria rewrite
	// dynamically via Update. Deadlines and laxities are tick counts and
	// comfortably fit below APERIODIC for any realistic quantum/horizon.
	PERIODIC  Rank = 10
	APERIODIC Rank = 1 << 32

	// IDLE is reserved for the per-CPU idle thread alone.
	IDLE Rank = 1<<62 - 1
)

// Event identifies a scheduling transition a Criterion's Collect hook is
// notified of, mirroring EPOS's CREATE/DISPATCH/LEAVE/FINISH/UPDATE.
type Event int

const (
	Create Event = iota
	Dispatch
	Leave
	Finish
	Update
)

// Statistics accumulates per-criterion bookkeeping: last dispatch
// timestamp, total and per-CPU execution time, and the last completed
// job's utilization — the fields the gllf test program prints via
// criterion().statistics().
type Statistics struct {
	mu               sync.Mutex
	LastDispatch     clock.Tick
	ExecutionTime    time.Duration
	ExecutionPerCPU  []time.Duration
	JobUtilization   float64
}

func newStatistics(cpus int) *Statistics {
	return &Statistics{ExecutionPerCPU: make([]time.Duration, cpus)}
}

// ChargeExecution adds d to the criterion's total and per-CPU execution
// time. The dispatcher does not call it, so ExecutionTime and
// ExecutionPerCPU stay zero unless some other caller charges them.
func (s *Statistics) ChargeExecution(cpu int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExecutionTime += d
	if cpu >= 0 && cpu < len(s.ExecutionPerCPU) {
		s.ExecutionPerCPU[cpu] += d
	}
}

// SetJobUtilization records the last completed job's observed
// capacity/period utilization.
func (s *Statistics) SetJobUtilization(u float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.JobUtilization = u
}

// Snapshot returns a copy safe to read without further synchronization.
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]time.Duration, len(s.ExecutionPerCPU))
	copy(cp, s.ExecutionPerCPU)
	return Statistics{
		LastDispatch:    s.LastDispatch,
		ExecutionTime:   s.ExecutionTime,
		ExecutionPerCPU: cp,
		JobUtilization:  s.JobUtilization,
	}
}

// Criterion is the policy object every thread carries. Construction is
// variant-specific (see NewPriority/NewFCFS/NewEDF/...); the dispatcher
// only ever interacts through this interface.
type Criterion interface {
	// Rank returns the current sort key.
	Rank() Rank

	// Queue returns the target ready-structure head: a fixed CPU index
	// for per-CPU variants, or -1 for variants (GLLF) sharing the global
	// multi-head structure.
	Queue() int

	// Update is called by the dispatcher on the outgoing thread before
	// it is reinserted into the ready structure, giving real-time
	// variants a chance to rewrite Rank. Non-real-time variants ignore
	// it outside the PERIODIC..APERIODIC band.
	Update(now clock.Tick)

	// Collect notifies the criterion of a scheduling event for
	// statistics bookkeeping.
	Collect(event Event, cpu int, now clock.Tick)

	// Charge reports whether a timer tick should trigger preemption for
	// this criterion. FCFS and plain priority are cooperative-only
	// (false); round-robin and every real-time variant are preemptive.
	Charge() bool

	// Statistics returns the criterion's accumulated bookkeeping.
	Statistics() *Statistics

	// Boost temporarily overrides Rank, used by the priority-ceiling and
	// priority-inheritance hooks (spec.md §4.3's prioritize/deprioritize)
	// to raise a resource holder's urgency without disturbing whatever
	// deadline/period/capacity state the underlying variant carries.
	// Unboost clears the override, reverting to the last value Update
	// computed (or the construction-time rank, if Update never ran).
	Boost(r Rank)
	Unboost()
}

// base holds the fields shared by every variant: the assigned head
// index, per-dispatch timing state and statistics. Embedding base keeps
// each variant's own file to the handful of lines that actually differ
// between policies (construction and Update), matching the source's own
// split between Criterion_Common and its subclasses.
type base struct {
	rank  Rank
	boost *Rank
	queue int
	stats *Statistics
}

func newBase(rank Rank, queue, cpus int) base {
	return base{rank: rank, queue: queue, stats: newStatistics(cpus)}
}

// Rank returns the boost override if one is active, else the variant's
// own computed rank.
func (b *base) Rank() Rank {
	if b.boost != nil {
		return *b.boost
	}
	return b.rank
}
func (b *base) Queue() int              { return b.queue }
func (b *base) Statistics() *Statistics { return b.stats }

func (b *base) Boost(r Rank) { b.boost = &r }
func (b *base) Unboost()     { b.boost = nil }

// Renewer is implemented by every real-time variant (EDF/LLF/GLLF): the
// hook rt.Periodic calls when a job's period elapses, restoring
// whatever per-job budget the variant tracks and advancing its deadline
// window. Kept as a separate interface from Criterion proper since
// FCFS/Priority/RoundRobin have no notion of a period to renew.
type Renewer interface {
	Renew(now clock.Tick)
}

func (b *base) Collect(event Event, cpu int, now clock.Tick) {
	switch event {
	case Dispatch:
		b.stats.mu.Lock()
		b.stats.LastDispatch = now
		b.stats.mu.Unlock()
	case Leave:
		// Leave accounting is variant-specific (LLF decrements capacity
		// in Update, which the dispatcher calls just before Leave); base
		// does nothing so plain priority/FCFS pay no cost.
	}
}
