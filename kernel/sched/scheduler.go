// Package sched implements the scheduling core itself: Thread, the
// per-CPU and global dispatch loops, and the Scheduler that ties
// criterion, ready and clock together. Grounded on spec.md §3/§4 and,
// for its boot/shutdown shape, on the teacher's Supervisor
// construction/Start/graceful-shutdown pattern
// (kernel/threads/supervisor.go), generalized from a fixed worker pool
// to a fixed per-CPU dispatch-loop pool.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/clock"
	"github.com/eliasxyz/epos-sched/kernel/config"
	"github.com/eliasxyz/epos-sched/kernel/cpu"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/metrics"
	"github.com/eliasxyz/epos-sched/kernel/ready"
	"github.com/eliasxyz/epos-sched/kernel/sched/arena"
	"github.com/eliasxyz/epos-sched/kernel/utils"
	"golang.org/x/sync/errgroup"
)

const tickVector = 0

// cpuState is one CPU's dispatch loop: its own ready queue (nil when the
// scheduler runs under a global GLLF structure instead), its idle
// thread, and whoever is RUNNING there right now.
type cpuState struct {
	unit    *cpu.Unit
	ready   *ready.Queue[*Thread]
	idle    *Thread
	running *Thread
	ticker  *clock.Ticker
}

// Scheduler owns every CPU's dispatch loop, the ready structure(s), the
// stack arena and the collaborators (clock, interrupt controller,
// metrics) spec.md §6 names as the core's only external interfaces.
type Scheduler struct {
	traits  config.Traits
	clk     clock.Clock
	alarm   *clock.Alarm
	ctrl    *cpu.Controller
	pool    *arena.StackPool
	metrics *metrics.Registry
	logger  *utils.Logger

	mu     sync.Mutex
	cpus   []*cpuState
	global *ready.Queue[*Thread] // non-nil only under PolicyGLLF

	shutdown *utils.GracefulShutdown
}

// Option configures a Scheduler at construction time, mirroring
// config.Traits's own functional-option shape.
type Option func(*Scheduler)

// WithClock swaps the real wall clock for any clock.Clock, normally
// clock.NewMock() in tests so EDF/LLF/GLLF scenarios can be driven
// deterministically instead of racing real sleeps.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clk = clk }
}

// WithMetrics registers a metrics registry; omit to run without one.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Scheduler) { s.metrics = reg }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *utils.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New constructs a Scheduler for traits, wiring a stack pool sized for
// maxThreads. The idle thread for every CPU is created immediately and
// installed as that CPU's RUNNING thread, matching EPOS's boot-time System_Init behavior of never
// leaving a CPU with nothing to dispatch.
func New(traits config.Traits, maxThreads int, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		traits: traits,
		clk:    clock.New(),
		logger: utils.DefaultLogger("sched"),
		ctrl:   cpu.NewController(traits.CPUs()),
		pool:   arena.NewStackPool(traits.StackSize(), maxThreads),
		cpus:   make([]*cpuState, traits.CPUs()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.alarm = clock.NewAlarm(s.clk, clock.Frequency(time.Second/traits.Quantum()))
	s.shutdown = utils.NewGracefulShutdown(5*time.Second, s.logger)

	if traits.Policy() == config.PolicyGLLF {
		s.global = ready.New[*Thread]()
	}
	for i := 0; i < traits.CPUs(); i++ {
		s.cpus[i] = &cpuState{unit: cpu.NewUnit(i, traits.CPUs())}
		if s.global == nil {
			s.cpus[i].ready = ready.New[*Thread]()
		}
		idle, err := s.spawnIdle(i)
		if err != nil {
			return nil, fmt.Errorf("sched: allocating idle thread for cpu %d: %w", i, err)
		}
		s.cpus[i].idle = idle
		s.cpus[i].running = idle
		idle.state = StateRunning
		idle.runningCPU = i
		// The idle thread starts RUNNING directly, never dispatched
		// through yieldSelf's resumeCh gate the way Spawn's threads are,
		// so its goroutine starts its loop immediately rather than
		// waiting for a handoff that will never come.
		go idle.entry(idle)
	}
	return s, nil
}

func (s *Scheduler) spawnIdle(cpuID int) (*Thread, error) {
	t, err := s.newThread(fmt.Sprintf("idle/%d", cpuID), criterion.NewFCFS(s.alarm, criterion.IDLE, cpuID, s.traits.CPUs()), func(self *Thread) int {
		for {
			self.Checkpoint()
			time.Sleep(time.Millisecond)
		}
	})
	if err != nil {
		return nil, err
	}
	t.home = cpuID
	return t, nil
}

// newThread allocates a stack slot and assembles a Thread, but does not
// link it into any ready structure or start its goroutine — callers
// decide that (Spawn links and starts; spawnIdle starts RUNNING
// directly).
func (s *Scheduler) newThread(name string, crit criterion.Criterion, entry Entry) (*Thread, error) {
	stack, slot, err := s.pool.Allocate()
	if err != nil {
		return nil, ErrStackExhausted
	}
	home := crit.Queue()
	t := &Thread{
		id:         utils.NewThreadID(),
		name:       name,
		sched:      s,
		home:       home,
		state:      StateSuspended,
		crit:       crit,
		runningCPU: -1,
		stack:      stack,
		stackSlot:  slot,
		entry:      entry,
		resumeCh:   make(chan struct{}, 1),
		joinQueue:  NewWaitQueue(),
	}
	return t, nil
}

// Spawn creates a new thread running entry under cfg.Criterion, in
// cfg.State (normally StateReady; StateSuspended builds the thread
// without entering contention for the CPU, matching EPOS's
// Configuration-driven Thread constructor, which can create a thread
// already suspended). Returns ErrStackExhausted if the arena has no
// free stack slot.
func (s *Scheduler) Spawn(name string, cfg Configuration, entry Entry) (*Thread, error) {
	t, err := s.newThread(name, cfg.Criterion, entry)
	if err != nil {
		return nil, err
	}
	cfg.Criterion.Collect(criterion.Create, t.home, s.alarm.Elapsed())

	s.mu.Lock()
	t.state = cfg.State
	if t.state == StateReady {
		s.linkReady(t)
	}
	s.mu.Unlock()

	go t.run()

	if t.state == StateReady {
		if s.global != nil {
			s.maybePreemptAll()
		} else {
			s.maybePreempt(t.home)
		}
	}
	return t, nil
}

// run is a spawned thread's goroutine body: block until dispatched, run
// Entry, and fall into Exit with its return value once Entry returns
// normally (Exit itself never returns, via runtime.Goexit in yieldSelf).
func (t *Thread) run() {
	<-t.resumeCh
	status := t.entry(t)
	t.sched.Exit(t, status)
}

// reap reclaims a finished thread's stack slot and moves every thread
// parked in Join on it back to READY. Caller must hold s.mu (called
// from within yieldSelf's toFinishing path); does not reacquire it, since linkReady
// requires the lock already held.
func (s *Scheduler) reap(t *Thread) {
	if err := s.pool.Free(t.stackSlot); err != nil {
		s.logger.Error("double free of thread stack", utils.String("thread", t.id), utils.Err(err))
	}
	for {
		e, ok := t.joinQueue.q.Pop()
		if !ok {
			return
		}
		joiner := e.Value
		joiner.state = StateReady
		joiner.waitingOn = nil
		joiner.waitElem = nil
		s.linkReady(joiner)
	}
}

// Start launches every CPU's timer-tick loop, which periodically asks
// the running thread's criterion whether a preemption is due (spec.md
// §4.3's Charge) and, if so, raises the cooperative preemption flag the
// thread observes at its next Checkpoint. Returns once every CPU's loop
// has stopped, which happens when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctrl.Vector(tickVector, func(cpuID int) { s.tick(s.cpus[cpuID]) })

	g, ctx := errgroup.WithContext(ctx)
	for i := range s.cpus {
		cs := s.cpus[i]
		cs.ticker = clock.NewTicker(s.clk, s.traits.Quantum())
		s.shutdown.Register(func() error { cs.ticker.Stop(); return nil })
		g.Go(func() error { return s.dispatchLoop(ctx, cs) })
	}
	return g.Wait()
}

// dispatchLoop is CPU cs.unit's own loop: on every quantum tick and on
// every IPI, it charges the currently running thread's criterion and
// requests a preemption if the policy calls for one.
func (s *Scheduler) dispatchLoop(ctx context.Context, cs *cpuState) error {
	ipi := s.ctrl.Channel(cs.unit.ID())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cs.ticker.C():
			if h, ok := s.ctrl.Handler(tickVector); ok {
				h(cs.unit.ID())
			}
		case <-ipi:
			if h, ok := s.ctrl.Handler(tickVector); ok {
				h(cs.unit.ID())
			}
		}
	}
}

// tick implements the timer-interrupt handler spec.md §6 names as the
// CPU/interrupt-controller collaborator's one inbound call: ask the
// running thread's criterion whether this quantum triggers preemption,
// and if so, raise its cooperative preemption flag.
func (s *Scheduler) tick(cs *cpuState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := cs.running
	if running == nil {
		return
	}
	// The idle thread is always a preemption candidate regardless of
	// its own (cooperative) criterion, since it must never keep a CPU
	// once any real thread is READY there — Charge() alone would leave
	// it running forever under a non-preemptive policy.
	if running == cs.idle || running.crit.Charge() {
		running.requestPreempt()
	}
}

// Shutdown stops every CPU's ticker through the registered shutdown
// functions, waiting up to the configured timeout and aggregating any
// errors. The dispatch loops themselves return only once the context
// passed to Start is cancelled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	return s.shutdown.Shutdown(ctx)
}

// Metrics returns the scheduler's metrics registry, or nil if none was
// configured.
func (s *Scheduler) Metrics() *metrics.Registry { return s.metrics }

// Alarm returns the scheduler's tick source, the same Alarm every
// criterion constructed for this scheduler's threads must be built
// against so their deadlines/periods/laxity share one time base with
// the dispatcher's own now := s.alarm.Elapsed() reads.
func (s *Scheduler) Alarm() *clock.Alarm { return s.alarm }
