package ready_test

import (
	"testing"

	"github.com/eliasxyz/epos-sched/kernel/ready"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThread struct {
	name string
	rank int64
}

func (f *fakeThread) Rank() int64 { return f.rank }

func TestQueue_HeadIsLowestRank(t *testing.T) {
	q := ready.New[*fakeThread]()
	q.Insert(&fakeThread{"low-urgency", 30})
	q.Insert(&fakeThread{"high-urgency", 5})
	q.Insert(&fakeThread{"mid-urgency", 15})

	head, ok := q.Head()
	require.True(t, ok)
	assert.Equal(t, "high-urgency", head.Value.name)
	assert.Equal(t, 3, q.Len())
}

func TestQueue_EqualRanksStayFIFO(t *testing.T) {
	q := ready.New[*fakeThread]()
	q.Insert(&fakeThread{"first", 10})
	q.Insert(&fakeThread{"second", 10})
	q.Insert(&fakeThread{"third", 10})

	names := []string{}
	q.ForEach(func(e *ready.Element[*fakeThread]) { names = append(names, e.Value.name) })
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestQueue_Chosen_ReturnsKthSmallest(t *testing.T) {
	q := ready.New[*fakeThread]()
	q.Insert(&fakeThread{"a", 9})
	q.Insert(&fakeThread{"b", 5})
	q.Insert(&fakeThread{"c", 7})

	zeroth, ok := q.Chosen(0)
	require.True(t, ok)
	assert.Equal(t, "b", zeroth.Value.name)

	first, ok := q.Chosen(1)
	require.True(t, ok)
	assert.Equal(t, "c", first.Value.name)

	_, ok = q.Chosen(3)
	assert.False(t, ok)
}

func TestQueue_RemoveUnlinks(t *testing.T) {
	q := ready.New[*fakeThread]()
	e := q.Insert(&fakeThread{"target", 1})
	q.Insert(&fakeThread{"other", 2})

	q.Remove(e)
	assert.Equal(t, 1, q.Len())
	head, _ := q.Head()
	assert.Equal(t, "other", head.Value.name)
}

func TestQueue_Reinsert_ReordersOnRankChange(t *testing.T) {
	q := ready.New[*fakeThread]()
	victim := &fakeThread{"was-low", 50}
	e := q.Insert(victim)
	q.Insert(&fakeThread{"mid", 25})

	victim.rank = 1
	q.Reinsert(e)

	head, _ := q.Head()
	assert.Equal(t, "was-low", head.Value.name)
}

func TestQueue_Reinsert_NoOpWhenRankUnchanged(t *testing.T) {
	q := ready.New[*fakeThread]()
	e := q.Insert(&fakeThread{"stable", 5})
	q.Reinsert(e) // should not panic or reorder a singleton
	assert.Equal(t, 1, q.Len())
}

func TestQueue_PopRemovesAndReturnsHead(t *testing.T) {
	q := ready.New[*fakeThread]()
	q.Insert(&fakeThread{"a", 2})
	q.Insert(&fakeThread{"b", 1})

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", e.Value.name)
	assert.Equal(t, 1, q.Len())
}
