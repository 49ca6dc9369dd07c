// Package rt builds real-time periodic threads and timing instruments on
// top of kernel/sched, grounded on original_source's real-time.h
// (Periodic_Thread, RTConf) and its own Chronometer. Neither the ready
// structure, the criterion variants, nor the scheduler know anything
// about periods or iteration counts; rt is where "run this job, then
// wait for the next period" becomes a loop around Scheduler.Sleep/Wakeup
// blocking and criterion.Renewer.Renew, so the core can stay ignorant of any
// concept of a bounded number of jobs.
package rt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/eliasxyz/epos-sched/kernel/clock"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/sched"
)

// Conf mirrors EPOS's RTConf(period, deadline, capacity, activation,
// iterations): a periodic job's timing contract. Deadline of 0 means
// "deadline equals period", same convention the source uses.
type Conf struct {
	Period     clock.Tick
	Deadline   clock.Tick
	Capacity   clock.Tick
	Iterations int // 0 means unbounded, same as the source's infinite run
}

func (c Conf) deadline() clock.Tick {
	if c.Deadline == 0 {
		return c.Period
	}
	return c.Deadline
}

// Periodic wraps a sched.Thread with the period/iteration bookkeeping
// the source's Periodic_Thread carries, so job bodies never manage
// Renew or a job counter themselves: New's loop calls waitNext after
// each job.
type Periodic struct {
	sched   *sched.Scheduler
	thread  *sched.Thread
	alarm   *clock.Alarm
	renew   criterion.Renewer
	conf    Conf
	chrono  *Chronometer
	wake    *sched.WaitQueue
	policy  string
	mu      sync.Mutex
	done    int
	misses  int
	release clock.Tick
	deadln  clock.Tick
}

// policyLabel derives the metrics label rt attaches to a deadline miss
// from the concrete criterion's type name (EDF/LLF), since rt has no
// other name for "which variant missed" — config.Policy lives one layer
// up, in the traits the scheduler was built from, not in the criterion
// value itself.
func policyLabel(crit criterion.Criterion) string {
	name := fmt.Sprintf("%T", crit)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(strings.TrimPrefix(name, "*"))
}

// New spawns a periodic thread, built against s's own Alarm so its
// period/deadline bookkeeping shares the dispatcher's time base. body is
// called once per job; New's wrapper waits for the next period
// (waitNext) after body returns, matching the source's own `do { ...; }
// while(wait_next())` shape, expressed here as a loop New owns instead
// of one the caller writes).
func New(s *sched.Scheduler, name string, crit criterion.Criterion, conf Conf, body func(self *sched.Thread, job int) int) (*Periodic, error) {
	renew, ok := crit.(criterion.Renewer)
	if !ok {
		return nil, errNotRenewable(name)
	}
	alarm := s.Alarm()
	p := &Periodic{sched: s, alarm: alarm, renew: renew, conf: conf, chrono: NewChronometer(alarm), wake: sched.NewWaitQueue(), policy: policyLabel(crit)}

	t, err := s.Spawn(name, sched.Configuration{State: sched.StateReady, Criterion: crit}, func(self *sched.Thread) int {
		p.thread = self
		now := p.alarm.Elapsed()
		p.release = now + p.conf.Period
		p.deadln = now + p.conf.deadline()
		status := 0
		job := 0
		for {
			p.chrono.Start()
			status = body(self, job)
			p.chrono.Stop()
			job++
			if !p.waitNext(job) {
				break
			}
		}
		return status
	})
	if err != nil {
		return nil, err
	}
	p.thread = t
	return p, nil
}

// waitNext is the source's Periodic_Thread::wait_next(): record the
// just-finished job's utilization and whether it ran past its deadline,
// block until the next period's release instant, then renew the
// criterion's budget/deadline for the job about to start. Reports
// whether another job remains (false once Conf.Iterations is exhausted,
// or always true when unbounded).
func (p *Periodic) waitNext(job int) bool {
	now := p.alarm.Elapsed()

	consumed := p.chrono.Last()
	util := 0.0
	if p.conf.Period > 0 {
		util = float64(p.alarm.Ticks(consumed)) / float64(p.conf.Period)
	}
	p.thread.Criterion().Statistics().SetJobUtilization(util)

	missed := now > p.deadln
	p.mu.Lock()
	p.done = job
	if missed {
		p.misses++
	}
	p.mu.Unlock()
	if missed {
		if m := p.sched.Metrics(); m != nil {
			m.DeadlineMisses.WithLabelValues(p.policy).Inc()
		}
	}

	if p.conf.Iterations > 0 && job >= p.conf.Iterations {
		return false
	}

	p.blockUntilRelease()
	p.renew.Renew(p.alarm.Elapsed())
	p.release += p.conf.Period
	p.deadln += p.conf.Period
	return true
}

// blockUntilRelease parks the calling thread until its next period
// begins, the rendition of EPOS's Alarm-driven wakeup of a Periodic_
// Thread: a timer goroutine (standing in for the hardware alarm
// handler) wakes whoever is parked on p.wake once the release instant
// arrives. A no-op if the job already ran past its own release (e.g. a
// WCET overrun), matching the source's behavior of never blocking on an
// already-elapsed deadline.
func (p *Periodic) blockUntilRelease() {
	now := p.alarm.Elapsed()
	if now >= p.release {
		return
	}
	d := p.alarm.Duration(p.release - now)
	go func() {
		<-p.alarm.After(d)
		p.sched.Wakeup(p.wake)
	}()
	p.sched.Sleep(p.thread, p.wake)
}

// Completed returns how many jobs have finished so far.
func (p *Periodic) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Misses returns how many completed jobs ran past their deadline.
func (p *Periodic) Misses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.misses
}

// Thread returns the underlying scheduler thread, e.g. to Join on it.
func (p *Periodic) Thread() *sched.Thread { return p.thread }

type notRenewableError struct{ name string }

func (e *notRenewableError) Error() string {
	return "rt: criterion for periodic thread " + e.name + " does not implement Renew"
}

func errNotRenewable(name string) error { return &notRenewableError{name: name} }
