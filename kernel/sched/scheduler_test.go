package sched_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/config"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, opts ...config.Option) *sched.Scheduler {
	t.Helper()
	traits := config.New(opts...)
	s, err := sched.New(traits, 16)
	require.NoError(t, err)
	return s
}

// waitOrTimeout fails the test if done doesn't close within the given
// bound — every scenario here is dispatched by the idle thread noticing
// a cooperative preemption request on its own ~1ms poll loop, so tests
// need a little real wall-clock slack rather than a hard deadline of 0.
func waitOrTimeout(t *testing.T, done <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for threads to finish")
	}
}

// TestCooperativeRoundRobin_AlternatesOnYield exercises spec.md §8's
// simplest scenario: two equal-rank threads under round-robin take turns
// purely by calling Yield, with no timer preemption involved (Start is
// never called).
func TestCooperativeRoundRobin_AlternatesOnYield(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyRoundRobin))

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	const rounds = 3
	var wg sync.WaitGroup
	wg.Add(2)

	spawn := func(name string) {
		_, err := s.Spawn(name, sched.Configuration{
			State:     sched.StateReady,
			Criterion: criterion.NewRoundRobin(criterion.NORMAL, 0, 1),
		}, func(self *sched.Thread) int {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				record(name)
				s.Yield(self)
			}
			return 0
		})
		require.NoError(t, err)
	}
	spawn("A")
	spawn("B")

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	waitOrTimeout(t, done, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2*rounds)
	for i, name := range order {
		want := "A"
		if i%2 == 1 {
			want = "B"
		}
		assert.Equalf(t, want, name, "position %d", i)
	}
}

// TestJoin_ReturnsExitStatus exercises spec.md §4.3's Join: a waiter
// thread blocks until its target exits and observes exactly the status
// passed to Exit, regardless of which of the two finishes first.
func TestJoin_ReturnsExitStatus(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyPriority))

	target, err := s.Spawn("target", sched.Configuration{
		State:     sched.StateReady,
		Criterion: criterion.NewPriority(criterion.NORMAL, 0, 1),
	}, func(self *sched.Thread) int {
		return 42
	})
	require.NoError(t, err)

	result := make(chan int, 1)
	_, err = s.Spawn("joiner", sched.Configuration{
		State:     sched.StateReady,
		Criterion: criterion.NewPriority(criterion.NORMAL, 0, 1),
	}, func(self *sched.Thread) int {
		result <- s.Join(self, target)
		return 0
	})
	require.NoError(t, err)

	select {
	case status := <-result:
		assert.Equal(t, 42, status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Join to return")
	}
}

// TestPass_HandsOffDirectlyBypassingReadyOrder exercises EPOS's
// Thread::pass() optimization: self hands the CPU straight to target,
// even when a third, more urgent thread sits ahead of target in the
// ready structure — Pass is a direct hand-off, not an ordinary
// reschedule through the normal dispatch order.
func TestPass_HandsOffDirectlyBypassingReadyOrder(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyRoundRobin))

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(3)

	_, err := s.Spawn("A", sched.Configuration{
		State:     sched.StateReady,
		Criterion: criterion.NewRoundRobin(criterion.NORMAL, 0, 1),
	}, func(self *sched.Thread) int {
		defer wg.Done()
		record("A")

		b, err := s.Spawn("B", sched.Configuration{
			State:     sched.StateReady,
			Criterion: criterion.NewRoundRobin(criterion.NORMAL, 0, 1),
		}, func(bself *sched.Thread) int {
			defer wg.Done()
			record("B")
			return 0
		})
		require.NoError(t, err)

		_, err = s.Spawn("C", sched.Configuration{
			State:     sched.StateReady,
			Criterion: criterion.NewPriority(criterion.HIGH, 0, 1),
		}, func(cself *sched.Thread) int {
			defer wg.Done()
			record("C")
			return 0
		})
		require.NoError(t, err)

		s.Pass(self, b)
		record("A-resumed")
		return 0
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	waitOrTimeout(t, done, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"A", "B", "C", "A-resumed"}, order)
}

// TestSuspendResume exercises spec.md §4.3's suspend()/resume(): a
// suspended thread stops making progress, and resuming it lets it
// continue from where it left off.
func TestSuspendResume(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyRoundRobin))

	var counter atomic.Int64
	th, err := s.Spawn("looper", sched.Configuration{
		State:     sched.StateReady,
		Criterion: criterion.NewRoundRobin(criterion.NORMAL, 0, 1),
	}, func(self *sched.Thread) int {
		for {
			counter.Add(1)
			self.Checkpoint()
		}
	})
	require.NoError(t, err)

	requireState := func(want sched.State) {
		t.Helper()
		require.Eventually(t, func() bool {
			return th.State() == want
		}, 2*time.Second, time.Millisecond)
	}

	requireState(sched.StateRunning)

	s.Suspend(th)
	requireState(sched.StateSuspended)

	before := counter.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, counter.Load(), "suspended thread must not make progress")

	s.Resume(th)
	require.Eventually(t, func() bool {
		return counter.Load() > before
	}, 2*time.Second, time.Millisecond)
}
