package arena_test

import (
	"testing"

	"github.com/eliasxyz/epos-sched/kernel/sched/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackPool_AllocateReturnsDistinctRegions(t *testing.T) {
	p := arena.NewStackPool(64, 4)

	a, slotA, err := p.Allocate()
	require.NoError(t, err)
	b, slotB, err := p.Allocate()
	require.NoError(t, err)

	assert.NotEqual(t, slotA, slotB)
	assert.Len(t, a, 64)
	assert.Len(t, b, 64)
}

func TestStackPool_ExhaustionReturnsError(t *testing.T) {
	p := arena.NewStackPool(32, 2)
	_, _, err := p.Allocate()
	require.NoError(t, err)
	_, _, err = p.Allocate()
	require.NoError(t, err)

	_, _, err = p.Allocate()
	assert.ErrorIs(t, err, arena.ErrExhausted)
}

func TestStackPool_FreeReclaimsSlot(t *testing.T) {
	p := arena.NewStackPool(16, 1)
	_, slot, err := p.Allocate()
	require.NoError(t, err)

	_, _, err = p.Allocate()
	require.Error(t, err)

	require.NoError(t, p.Free(slot))

	_, _, err = p.Allocate()
	assert.NoError(t, err)
}

func TestStackPool_DoubleFreeErrors(t *testing.T) {
	p := arena.NewStackPool(16, 1)
	_, slot, _ := p.Allocate()
	require.NoError(t, p.Free(slot))
	assert.Error(t, p.Free(slot))
}

func TestStackPool_StatsReportsUtilization(t *testing.T) {
	p := arena.NewStackPool(8, 4)
	p.Allocate()
	p.Allocate()

	stats := p.Stats()
	assert.Equal(t, 2, stats.Allocated)
	assert.Equal(t, 4, stats.Capacity)
	assert.InDelta(t, 0.5, stats.Utilization, 0.001)
}
