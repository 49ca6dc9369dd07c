package sched_test

import (
	"testing"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/config"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrioritize_InheritanceBoostsHolderToHighestWaiterRank exercises
// spec.md §8 scenario 3's mechanism directly: prioritize(q) boosts a
// resource holder to the rank of q's highest-ranked waiter, and
// deprioritize(q) restores its natural rank once the resource is
// released.
func TestPrioritize_InheritanceBoostsHolderToHighestWaiterRank(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyPriority), config.WithInversionProtocol(config.PriorityInheritance))

	holder, err := s.Spawn("holder", sched.Configuration{
		State:     sched.StateSuspended,
		Criterion: criterion.NewPriority(criterion.LOW, 0, 1),
	}, func(self *sched.Thread) int { return 0 })
	require.NoError(t, err)

	waitersQ := sched.NewWaitQueue()
	blocked := make(chan struct{})
	_, err = s.Spawn("waiter", sched.Configuration{
		State:     sched.StateReady,
		Criterion: criterion.NewPriority(criterion.HIGH, 0, 1),
	}, func(self *sched.Thread) int {
		close(blocked)
		s.Sleep(self, waitersQ)
		return 0
	})
	require.NoError(t, err)

	<-blocked
	require.Eventually(t, func() bool { return waitersQ.Len() == 1 }, 2*time.Second, time.Millisecond,
		"waiter never parked on the resource queue")

	s.Prioritize(holder, waitersQ)
	assert.Equal(t, criterion.HIGH, holder.Criterion().Rank())

	s.Deprioritize(holder)
	assert.Equal(t, criterion.LOW, holder.Criterion().Rank())

	s.Wakeup(waitersQ)
}

// TestWakeup_ReleasesHighestRankedWaiterFirst exercises spec.md §8
// scenario 6: wakeup(q) always releases q's most urgent sleeper first,
// regardless of the order they went to sleep in.
func TestWakeup_ReleasesHighestRankedWaiterFirst(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyPriority))
	q := sched.NewWaitQueue()

	released := make(chan string, 2)
	spawnSleeper := func(name string, rank criterion.Rank) {
		_, err := s.Spawn(name, sched.Configuration{
			State:     sched.StateReady,
			Criterion: criterion.NewPriority(rank, 0, 1),
		}, func(self *sched.Thread) int {
			s.Sleep(self, q)
			released <- name
			return 0
		})
		require.NoError(t, err)
	}
	spawnSleeper("low", criterion.LOW)
	spawnSleeper("high", criterion.HIGH)

	require.Eventually(t, func() bool { return q.Len() == 2 }, 2*time.Second, time.Millisecond,
		"both sleepers never parked on the queue")

	require.True(t, s.Wakeup(q))
	select {
	case name := <-released:
		assert.Equal(t, "high", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first wakeup")
	}

	require.True(t, s.Wakeup(q))
	select {
	case name := <-released:
		assert.Equal(t, "low", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the second wakeup")
	}

	assert.False(t, s.Wakeup(q), "wakeup on an empty queue must report no one woken, not error")
}
