package sched

import (
	"sync/atomic"

	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/ready"
)

// State is a thread's lifecycle state, spec.md §3/§4.3.
type State int

const (
	StateReady State = iota
	StateRunning
	StateSuspended
	StateWaiting
	StateFinishing
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateSuspended:
		return "SUSPENDED"
	case StateWaiting:
		return "WAITING"
	case StateFinishing:
		return "FINISHING"
	default:
		return "UNKNOWN"
	}
}

// Entry is a thread's body. It receives the Thread running it, the Go
// analogue of EPOS's variadic entry-plus-argument-pack (process.h's
// Thread(int (*entry)(Tn...), Tn... an)): a closure capturing whatever
// arguments it needs plays the role the argument pack played on the
// fabricated stack, and self replaces the static "the running thread"
// lookup the source gets from CPU-local storage, which Go has no
// equivalent of.
type Entry func(self *Thread) int

// Configuration mirrors EPOS's Thread::Configuration (process.h):
// initial state and criterion. Stack size is not repeated here because
// it is fixed scheduler-wide by config.Traits.StackSize, not
// per-thread, in this rendition.
type Configuration struct {
	State     State
	Criterion criterion.Criterion
}

// Thread is the scheduling core's central entity: a goroutine wrapping
// Entry, a criterion deciding when it runs, and the bookkeeping needed
// for join/sleep/wakeup/ceiling-inheritance. Exported fields are none;
// every mutation goes through Scheduler methods so the "friend class"
// back-channels the C++ source uses (Scheduler and Synchronizer reaching
// into Thread internals) become a closed set of package-internal
// operations instead of a public contract (spec.md §9 Design Notes).
type Thread struct {
	id   string
	name string

	sched *Scheduler
	home  int // assigned CPU; -1 under the global (GLLF) ready structure

	// state, crit and runningCPU are mutated only while holding
	// sched.mu — the single scheduler lock spec.md §4.3's dispatch
	// algorithm refers to — never a per-thread lock, since a dispatch
	// decision on one thread routinely reads or writes another (the
	// outgoing and incoming thread of the same yieldSelf call).
	state      State
	crit       criterion.Criterion
	runningCPU int // CPU this thread is executing on while RUNNING, else -1

	waitingOn *WaitQueue
	readyElem *ready.Element[*Thread]
	waitElem  *ready.Element[*Thread]

	// override, when non-nil, replaces the transition a subsequent
	// Checkpoint-driven yieldSelf would otherwise apply on this thread's
	// own goroutine. Suspend sets it so a thread running on another
	// goroutine is moved to SUSPENDED the next time it cooperatively
	// reschedules, rather than being touched from the caller's goroutine.
	override *transition

	joinQueue  *WaitQueue // waiters in Join; spec.md §4.3's "at most one joiner"
	exitStatus int

	stack     []byte
	stackSlot int

	entry    Entry
	resumeCh chan struct{}
	preempt  atomic.Bool
}

// Rank adapts Criterion.Rank to the ready package's generic Ranked
// contract (Rank() int64), the reason ready never needs to import
// criterion and the clock -> criterion -> ready -> sched dependency
// chain stays acyclic.
func (t *Thread) Rank() int64 { return int64(t.crit.Rank()) }

// ID returns the thread's unique identifier.
func (t *Thread) ID() string { return t.id }

// Name returns the thread's human-readable label, for logging only.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current lifecycle state.
func (t *Thread) State() State {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.state
}

// Criterion returns the thread's current scheduling criterion.
func (t *Thread) Criterion() criterion.Criterion {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.crit
}

// Statistics returns the thread's criterion's accumulated bookkeeping,
// the gllf test program's thread_a->criterion().statistics() call
// translated directly.
func (t *Thread) Statistics() criterion.Statistics {
	return t.Criterion().Statistics().Snapshot()
}

// Home returns the CPU this thread is pinned to, or -1 if it floats
// across the global ready structure's heads (GLLF).
func (t *Thread) Home() int { return t.home }

// RunningCPU returns the CPU this thread is currently executing on, or
// -1 if it is not RUNNING anywhere right now. Mainly useful under GLLF,
// where Home is always -1 and a thread's actual CPU varies dispatch to
// dispatch.
func (t *Thread) RunningCPU() int {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.runningCPU
}

// requestPreempt sets the cooperative preemption flag a CPU's timer
// tick or a remote IPI raises on the thread currently RUNNING there.
// Go cannot forcibly suspend arbitrary running code, so this is a
// request the thread's own entry must honor by calling Checkpoint at a
// safe point — see Design Notes in DESIGN.md for the full rationale.
func (t *Thread) requestPreempt() { t.preempt.Store(true) }

// Checkpoint is the cooperative preemption point an Entry calls at safe
// intervals (the head of a work loop, between jobs). If a preemption
// was requested since the thread was last dispatched, Checkpoint
// reschedules immediately, exactly as a real timer-tick preemption
// would; otherwise it returns immediately at negligible cost.
func (t *Thread) Checkpoint() {
	if t.preempt.CompareAndSwap(true, false) {
		t.sched.yieldSelf(t, transition{kind: toReady})
	}
}
