// Package config assembles the scheduler's boot-time configuration. It is
// the Go analogue of EPOS's compile-time Traits<Thread>/Traits<System>
// template specializations: a single immutable value, built once before
// the scheduler exists and handed to sched.New, with no runtime
// reconfiguration surface.
package config

import "time"

// Policy selects the criterion the scheduler ranks threads by. Mirrors
// EPOS's Traits<Thread>::Criterion selection (process.h).
type Policy int

const (
	// PolicyPriority is a static, cooperative/preemptive priority scheme.
	PolicyPriority Policy = iota
	// PolicyFCFS ranks threads by arrival order alone.
	PolicyFCFS
	// PolicyRoundRobin is PolicyPriority with a shared rank and a time
	// quantum, rotating ties on every tick.
	PolicyRoundRobin
	// PolicyEDF ranks periodic threads by absolute deadline (uniprocessor).
	PolicyEDF
	// PolicyLLF ranks periodic threads by dynamic laxity, recomputed on
	// every quantum (uniprocessor).
	PolicyLLF
	// PolicyGLLF is PolicyLLF generalized to multiple CPUs with a single
	// global ready structure and per-CPU heads.
	PolicyGLLF
)

func (p Policy) String() string {
	switch p {
	case PolicyPriority:
		return "priority"
	case PolicyFCFS:
		return "fcfs"
	case PolicyRoundRobin:
		return "round-robin"
	case PolicyEDF:
		return "edf"
	case PolicyLLF:
		return "llf"
	case PolicyGLLF:
		return "gllf"
	default:
		return "unknown"
	}
}

// Preemptive reports whether the policy ever revokes a CPU from a running
// thread before it blocks or exits voluntarily. Only FCFS is
// cooperative; plain priority preempts when a more urgent thread becomes
// READY, and round-robin and the real-time policies also on timer ticks.
func (p Policy) Preemptive() bool {
	return p != PolicyFCFS
}

// RealTime reports whether the policy's rank is time-driven (deadline or
// laxity) rather than a fixed number.
func (p Policy) RealTime() bool {
	switch p {
	case PolicyEDF, PolicyLLF, PolicyGLLF:
		return true
	default:
		return false
	}
}

// InversionProtocol selects the priority-inversion avoidance strategy
// applied by the sync hooks (spec.md §5 SYNC HOOKS). Mirrors EPOS's
// Traits<Thread>::priority_inversion_protocol.
type InversionProtocol int

const (
	// NoInversionProtocol disables ceiling/inheritance boosting entirely.
	NoInversionProtocol InversionProtocol = iota
	// PriorityInheritance boosts a lock holder to its highest blocked
	// waiter's priority for the lock's duration.
	PriorityInheritance
	// PriorityCeiling boosts a lock holder unconditionally to a
	// preconfigured ceiling rank for the lock's duration.
	PriorityCeiling
)

// Reboot names what should happen when every thread but the idle thread
// has exited. EPOS traits expose this as Traits<System>::reboot. The
// value is only stored in Traits: the scheduler does not read it, so
// under either value the idle threads keep running.
type Reboot int

const (
	// RebootNever leaves the idle thread spinning forever.
	RebootNever Reboot = iota
	// RebootOnIdle names tearing the scheduler down once only the idle
	// thread remains runnable on every CPU; nothing acts on it.
	RebootOnIdle
)

// Traits is the scheduler's immutable boot-time configuration. Built once
// via New with functional options and never mutated afterward — there is
// no setter, matching spec.md §6's "No runtime configuration surface."
type Traits struct {
	policy       Policy
	quantum      time.Duration
	stackSize    int
	cpus         int
	mp           bool
	reboot       Reboot
	inversion    InversionProtocol
	ceilingRank  int
	tieBreakFIFO bool
}

// Option configures a Traits value at construction time.
type Option func(*Traits)

// WithPolicy sets the ranking criterion. Defaults to PolicyPriority.
func WithPolicy(p Policy) Option {
	return func(t *Traits) { t.policy = p }
}

// WithQuantum sets the round-robin/preemption time slice. Defaults to
// 10ms, EPOS's own default QUANTUM.
func WithQuantum(d time.Duration) Option {
	return func(t *Traits) { t.quantum = d }
}

// WithStackSize sets the per-thread stack region size handed out by the
// arena's stack pool. Defaults to 64KiB, EPOS's own default STACK_SIZE.
func WithStackSize(bytes int) Option {
	return func(t *Traits) { t.stackSize = bytes }
}

// WithCPUs sets the number of CPUs the scheduler dispatches across.
// Defaults to 1. Values greater than 1 imply mp(true).
func WithCPUs(n int) Option {
	return func(t *Traits) {
		t.cpus = n
		if n > 1 {
			t.mp = true
		}
	}
}

// WithReboot sets the idle-exhaustion policy. Defaults to RebootNever.
func WithReboot(r Reboot) Option {
	return func(t *Traits) { t.reboot = r }
}

// WithInversionProtocol sets the priority-inversion avoidance strategy
// used by the sync hooks. Defaults to PriorityInheritance.
func WithInversionProtocol(p InversionProtocol) Option {
	return func(t *Traits) { t.inversion = p }
}

// WithCeilingRank sets the rank a lock holder is boosted to under
// PriorityCeiling. Ignored under any other InversionProtocol.
func WithCeilingRank(rank int) Option {
	return func(t *Traits) { t.ceilingRank = rank }
}

// WithFIFOTieBreak records a preference for dispatching equal-rank
// threads in arrival order. Off by default. The flag is only stored:
// neither the scheduler nor the ready structure reads it, and ties are
// always ordered by the ready structure's insertion-stable placement,
// a Reinsert placing the element after its existing equals.
func WithFIFOTieBreak(v bool) Option {
	return func(t *Traits) { t.tieBreakFIFO = v }
}

const (
	defaultQuantum   = 10 * time.Millisecond
	defaultStackSize = 64 * 1024
)

// New assembles a Traits value, applying defaults first and then every
// option in order.
func New(opts ...Option) Traits {
	t := Traits{
		policy:    PolicyPriority,
		quantum:   defaultQuantum,
		stackSize: defaultStackSize,
		cpus:      1,
		mp:        false,
		reboot:    RebootNever,
		inversion: PriorityInheritance,
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.cpus < 1 {
		t.cpus = 1
	}
	return t
}

func (t Traits) Policy() Policy                       { return t.policy }
func (t Traits) Quantum() time.Duration                { return t.quantum }
func (t Traits) StackSize() int                        { return t.stackSize }
func (t Traits) CPUs() int                             { return t.cpus }
func (t Traits) MP() bool                              { return t.mp }
func (t Traits) Reboot() Reboot                        { return t.reboot }
func (t Traits) InversionProtocol() InversionProtocol  { return t.inversion }
func (t Traits) CeilingRank() int                      { return t.ceilingRank }
func (t Traits) FIFOTieBreak() bool                    { return t.tieBreakFIFO }
