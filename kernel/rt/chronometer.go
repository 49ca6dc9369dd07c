package rt

import (
	"sync"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/clock"
)

// Chronometer is a stopwatch against an Alarm's clock, grounded on
// original_source's Chronometer (start/stop/read/reset). Used by
// Periodic to measure how long each job actually ran, and available
// directly to Entry bodies that want to time their own work the way the
// gllf test program's callibrate()/exec() helpers do.
type Chronometer struct {
	mu      sync.Mutex
	alarm   *clock.Alarm
	running bool
	epoch   time.Time // wall-clock instant Start was last called
	base    time.Duration
	last    time.Duration
}

// NewChronometer returns a stopped chronometer reading zero.
func NewChronometer(alarm *clock.Alarm) *Chronometer {
	return &Chronometer{alarm: alarm}
}

// Start resumes counting from wherever Read currently stands.
func (c *Chronometer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.epoch = c.alarm.Now()
}

// Stop pauses counting, recording the interval just measured so Last
// can report it.
func (c *Chronometer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	elapsed := c.alarm.Now().Sub(c.epoch)
	c.base += elapsed
	c.last = elapsed
	c.running = false
}

// Read returns total accumulated elapsed time since construction or the
// last Reset, including any interval currently in progress.
func (c *Chronometer) Read() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return c.base + c.alarm.Now().Sub(c.epoch)
	}
	return c.base
}

// Reset zeroes the accumulated total without changing the running
// state, so a Start already in progress keeps counting from zero.
func (c *Chronometer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = 0
	c.last = 0
	if c.running {
		c.epoch = c.alarm.Now()
	}
}

// Last returns the duration of the most recently completed Start/Stop
// interval, zero if none has completed yet.
func (c *Chronometer) Last() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
