// Package clock wraps github.com/benbjohnson/clock to give the scheduler
// core a single source of time it can run against a real wall clock in
// production and a fully advanceable fake one in tests — the Go
// analogue of EPOS's Timer/Alarm hardware collaborators (process.h,
// system/config.h), without which the EDF/LLF/GLLF scenarios would need
// real sleeps and would be flaky.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Tick is a monotonically increasing count of timer interrupts, EPOS's
// own unit for deadlines, periods and capacities (Alarm::Tick).
type Tick int64

// Clock is the narrow time source every other collaborator in this
// package depends on. The real implementation is a thin pass-through to
// github.com/benbjohnson/clock's Clock; the mock implementation is
// driven explicitly by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Timer(d time.Duration) *clock.Timer
	Ticker(d time.Duration) *clock.Ticker
	Sleep(d time.Duration)
}

// New returns the real, wall-clock-backed Clock.
func New() Clock {
	return clock.New()
}

// Mock is a fully advanceable fake clock for deterministic tests,
// re-exported so test files never need to import benbjohnson/clock
// directly.
type Mock = clock.Mock

// NewMock returns a fake clock frozen at the Unix epoch, advanced only
// by explicit calls to Add/Set.
func NewMock() *Mock {
	return clock.NewMock()
}

// Frequency is the number of ticks per second the Alarm counts at.
// EPOS derives this from the platform timer; this rendition fixes it at
// construction via NewAlarm since there is no hardware timer to query.
type Frequency int64

// Alarm converts elapsed wall-clock time into Ticks for real-time
// criteria (EDF/LLF/GLLF), mirroring EPOS's Alarm::elapsed()/ticks().
type Alarm struct {
	clk  Clock
	freq Frequency
	t0   time.Time
}

// NewAlarm creates an Alarm ticking at freq Hz, zeroed at the moment of
// construction.
func NewAlarm(clk Clock, freq Frequency) *Alarm {
	return &Alarm{clk: clk, freq: freq, t0: clk.Now()}
}

// Frequency returns the alarm's configured tick rate.
func (a *Alarm) Frequency() Frequency { return a.freq }

// Now returns the underlying Clock's current instant, so collaborators
// that need wall-clock arithmetic (Chronometer) share the same notion
// of "now" as Elapsed/Ticks instead of quietly falling back to the real
// clock under a mock scheduler.
func (a *Alarm) Now() time.Time { return a.clk.Now() }

// Elapsed returns the number of ticks since the Alarm was constructed.
func (a *Alarm) Elapsed() Tick {
	return a.Ticks(a.clk.Now().Sub(a.t0))
}

// Ticks converts a duration into a Tick count at this Alarm's frequency.
func (a *Alarm) Ticks(d time.Duration) Tick {
	if a.freq <= 0 {
		return 0
	}
	return Tick(d.Seconds() * float64(a.freq))
}

// Duration is the inverse of Ticks: how long n ticks take at this
// Alarm's frequency.
func (a *Alarm) Duration(n Tick) time.Duration {
	if a.freq <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(a.freq) * float64(time.Second))
}

// After delivers the current time once d has elapsed on the Alarm's
// underlying Clock, the software analogue of EPOS's Alarm scheduling a
// one-shot handler — used by rt.Periodic to wake a job exactly at its
// next release instant instead of busy-polling Elapsed().
func (a *Alarm) After(d time.Duration) <-chan time.Time {
	return a.clk.After(d)
}

// Ticker delivers QUANTUM-period ticks to a single CPU's dispatch loop,
// the software analogue of EPOS's per-CPU programmable interval timer.
type Ticker struct {
	clk      Clock
	period   time.Duration
	internal *clock.Ticker
}

// NewTicker creates a Ticker that fires every period on clk.
func NewTicker(clk Clock, period time.Duration) *Ticker {
	return &Ticker{clk: clk, period: period, internal: clk.Ticker(period)}
}

// C is the channel ticks are delivered on.
func (t *Ticker) C() <-chan time.Time { return t.internal.C }

// Reset changes the ticker's period, taking effect on its next fire —
// the software analogue of reprogramming QUANTUM on the fly (e.g. after
// a Traits change at boot, never at runtime per spec.md §6).
func (t *Ticker) Reset(period time.Duration) {
	t.period = period
	t.internal.Reset(period)
}

// Stop halts the ticker: no further ticks are delivered on C. The
// channel is not closed, so a dispatch loop selecting on it keeps
// running until its own context is cancelled.
func (t *Ticker) Stop() { t.internal.Stop() }
