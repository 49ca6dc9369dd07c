package criterion_test

import (
	"testing"
	"time"

	"github.com/eliasxyz/epos-sched/kernel/clock"
	"github.com/eliasxyz/epos-sched/kernel/criterion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlarm(t *testing.T) (*clock.Mock, *clock.Alarm) {
	t.Helper()
	mock := clock.NewMock()
	return mock, clock.NewAlarm(mock, 1000) // 1kHz
}

func TestFCFS_PreservesIdleRank(t *testing.T) {
	_, alarm := newAlarm(t)
	f := criterion.NewFCFS(alarm, criterion.IDLE, 0, 1)
	assert.Equal(t, criterion.IDLE, f.Rank())
}

func TestFCFS_RanksByArrivalOrder(t *testing.T) {
	mock, alarm := newAlarm(t)
	first := criterion.NewFCFS(alarm, criterion.NORMAL, 0, 1)
	mock.Add(5 * time.Millisecond)
	second := criterion.NewFCFS(alarm, criterion.NORMAL, 0, 1)
	assert.Less(t, first.Rank(), second.Rank())
}

func TestEDF_UpdateRewritesRankToElapsedPlusDeadline(t *testing.T) {
	mock, alarm := newAlarm(t)
	e := criterion.NewEDF(alarm, clock.Tick(100), clock.Tick(100), clock.Tick(20), 0, 1)
	require.Equal(t, clock.Tick(100), e.Deadline())

	mock.Add(30 * time.Millisecond)
	e.Update(alarm.Elapsed())
	assert.Equal(t, criterion.PERIODIC+criterion.Rank(alarm.Elapsed())+criterion.Rank(100), e.Rank())
}

func TestEDF_EarlierDeadlineOutranksLater(t *testing.T) {
	_, alarm := newAlarm(t)
	tight := criterion.NewEDF(alarm, clock.Tick(50), clock.Tick(100), clock.Tick(10), 0, 1)
	loose := criterion.NewEDF(alarm, clock.Tick(500), clock.Tick(1000), clock.Tick(10), 0, 1)
	assert.Less(t, tight.Rank(), loose.Rank())
}

func TestLLF_CapacityDecreasesAcrossASuspension(t *testing.T) {
	mock, alarm := newAlarm(t)
	l := criterion.NewLLF(alarm, clock.Tick(200), clock.Tick(200), clock.Tick(50), 0, 1)
	require.Equal(t, clock.Tick(50), l.RemainingCapacity())

	l.Collect(criterion.Dispatch, 0, alarm.Elapsed())
	mock.Add(20 * time.Millisecond)
	l.Update(alarm.Elapsed())

	assert.Equal(t, clock.Tick(30), l.RemainingCapacity())
}

func TestLLF_RenewRestoresCapacityAndAdvancesDeadline(t *testing.T) {
	mock, alarm := newAlarm(t)
	l := criterion.NewLLF(alarm, clock.Tick(100), clock.Tick(100), clock.Tick(20), 0, 1)

	l.Collect(criterion.Dispatch, 0, alarm.Elapsed())
	mock.Add(20 * time.Millisecond)
	l.Update(alarm.Elapsed())
	require.Equal(t, clock.Tick(0), l.RemainingCapacity())

	l.Renew(alarm.Elapsed())
	assert.Equal(t, clock.Tick(20), l.RemainingCapacity())
	assert.Equal(t, clock.Tick(160), l.Laxity(alarm.Elapsed()))
	assert.InDelta(t, 0.2, l.Statistics().Snapshot().JobUtilization, 0.001)
}

func TestLLF_LowerLaxityOutranksHigher(t *testing.T) {
	_, alarm := newAlarm(t)
	tightest := criterion.NewLLF(alarm, clock.Tick(5), clock.Tick(100), clock.Tick(0), 0, 1)
	loosest := criterion.NewLLF(alarm, clock.Tick(9), clock.Tick(100), clock.Tick(0), 0, 1)
	assert.Less(t, tightest.Rank(), loosest.Rank())
}

func TestGLLF_UsesGlobalQueue(t *testing.T) {
	_, alarm := newAlarm(t)
	g := criterion.NewGLLF(alarm, clock.Tick(100), clock.Tick(100), clock.Tick(20), 4)
	assert.Equal(t, -1, g.Queue())
}

func TestRoundRobin_IsPreemptive(t *testing.T) {
	rr := criterion.NewRoundRobin(criterion.NORMAL, 0, 1)
	assert.True(t, rr.Charge())
}

func TestPriority_IsCooperative(t *testing.T) {
	p := criterion.NewPriority(criterion.NORMAL, 0, 1)
	assert.False(t, p.Charge())
}

func TestBoost_OverridesRankUntilUnboost(t *testing.T) {
	p := criterion.NewPriority(criterion.LOW, 0, 1)
	require.Equal(t, criterion.LOW, p.Rank())

	p.Boost(criterion.HIGH)
	assert.Equal(t, criterion.HIGH, p.Rank())

	p.Unboost()
	assert.Equal(t, criterion.LOW, p.Rank())
}

func TestBoost_SurvivesUnderlyingUpdate(t *testing.T) {
	_, alarm := newAlarm(t)
	e := criterion.NewEDF(alarm, clock.Tick(100), clock.Tick(100), clock.Tick(20), 0, 1)
	e.Boost(criterion.CEILING)

	e.Update(alarm.Elapsed())
	assert.Equal(t, criterion.CEILING, e.Rank())
}
