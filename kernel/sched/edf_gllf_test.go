package sched_test

import (
	"sync"
	"testing"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/clock"
	"github.com/eliasxyz/epos-sched/kernel/config"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/eliasxyz/epos-sched/kernel/sched"
	"github.com/stretchr/testify/require"
)

// TestEDF_DispatchOrder_EarlierDeadlineFirst exercises spec.md §8's
// universal EDF invariant directly at the dispatch level: of two threads
// made READY together, the one with the earlier deadline runs first.
func TestEDF_DispatchOrder_EarlierDeadlineFirst(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyEDF))
	alarm := s.Alarm()

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	spawnJob := func(name string, deadline clock.Tick) {
		_, err := s.Spawn(name, sched.Configuration{
			State:     sched.StateReady,
			Criterion: criterion.NewEDF(alarm, deadline, deadline, deadline, 0, 1),
		}, func(self *sched.Thread) int {
			defer wg.Done()
			record(name)
			return 0
		})
		require.NoError(t, err)
	}
	spawnJob("tight", clock.Tick(50))
	spawnJob("loose", clock.Tick(5000))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	waitOrTimeout(t, done, 2*time.Second)

	require.Equal(t, []string{"tight", "loose"}, order)
}

// TestGLLF_TwoCPUs_LowestLaxitiesDispatchFirst exercises spec.md §8
// scenario 4: three threads with distinct laxities on 2 CPUs. The two
// tightest laxities dispatch immediately, one per CPU (Chosen(0)/
// Chosen(1) of the shared global structure); the loosest waits for a CPU
// to free up.
func TestGLLF_TwoCPUs_LowestLaxitiesDispatchFirst(t *testing.T) {
	s := newScheduler(t, config.WithPolicy(config.PolicyGLLF), config.WithCPUs(2))
	alarm := s.Alarm()

	type arrival struct {
		name string
		cpu  int
	}
	arrived := make(chan arrival, 2)
	proceed := make(chan struct{})
	lax9Ran := make(chan struct{}, 1)

	spawnBarriered := func(name string, laxity clock.Tick) *sched.Thread {
		th, err := s.Spawn(name, sched.Configuration{
			State:     sched.StateReady,
			Criterion: criterion.NewGLLF(alarm, laxity, laxity, 0, 2),
		}, func(self *sched.Thread) int {
			arrived <- arrival{name: name, cpu: self.RunningCPU()}
			<-proceed
			return 0
		})
		require.NoError(t, err)
		return th
	}

	_, err := s.Spawn("lax9", sched.Configuration{
		State:     sched.StateReady,
		Criterion: criterion.NewGLLF(alarm, clock.Tick(9), clock.Tick(9), 0, 2),
	}, func(self *sched.Thread) int {
		lax9Ran <- struct{}{}
		return 0
	})
	require.NoError(t, err)

	spawnBarriered("lax5", clock.Tick(5))
	spawnBarriered("lax7", clock.Tick(7))

	byCPU := map[int]string{}
	for i := 0; i < 2; i++ {
		select {
		case a := <-arrived:
			byCPU[a.cpu] = a.name
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the two tightest-laxity threads to dispatch")
		}
	}
	require.Equal(t, "lax5", byCPU[0], "CPU0 should run the tightest laxity")
	require.Equal(t, "lax7", byCPU[1], "CPU1 should run the second-tightest laxity")

	select {
	case <-lax9Ran:
		t.Fatal("loosest-laxity thread dispatched before a CPU freed up")
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)

	select {
	case <-lax9Ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loosest-laxity thread never dispatched once a CPU freed up")
	}
}
