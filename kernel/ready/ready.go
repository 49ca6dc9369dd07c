// Package ready implements the Ordered Ready Structure: a rank-sorted
// multiset of threads, in both its per-CPU and global multi-head
// shapes. Grounded on spec.md §4.2 and, in spirit, on the teacher's
// container/heap-based DeadlineScheduler (kernel/threads/intelligence/
// scheduling/engine.go) — generalized here from a heap to a sorted
// slice because the global shape's Chosen(cpu) must return the cpu-th
// smallest element in O(1)/O(log n), something a binary heap cannot
// serve without an O(n) partial extraction.
package ready

import "sort"

// Ranked is the minimal contract the ready structure needs from a
// thread's criterion: a comparable sort key. Kept generic over
// criterion.Criterion/Rank so this package never imports sched, closing
// off a clock -> criterion -> ready -> sched import cycle.
type Ranked interface {
	Rank() int64
}

// Element is a single entry in the structure: the ranked payload plus
// the rank it was inserted with. Carrying the rank alongside the
// payload (rather than re-reading payload.Rank() on every comparison)
// is what lets Reinsert detect whether a rank actually changed before
// paying for a re-sort.
type Element[T Ranked] struct {
	Value T
	rank  int64
	seq   uint64 // insertion sequence; recorded but not compared: ties stay FIFO because Insert places an element after its equals
}

func (e *Element[T]) Rank() int64 { return e.rank }

// Queue is an insertion-stable, rank-ordered multiset. The zero value is
// not ready for use; construct with New.
type Queue[T Ranked] struct {
	elems []*Element[T]
	seq   uint64
}

// New returns an empty ordered queue.
func New[T Ranked]() *Queue[T] {
	return &Queue[T]{}
}

// Len returns the number of elements currently linked.
func (q *Queue[T]) Len() int { return len(q.elems) }

// Insert links value into the structure at its criterion's current
// rank, preserving FIFO order among equal ranks (spec.md §4.2:
// "insertion is stable"). Returns the Element handle, which the caller
// (normally sched.Thread) must retain to later Remove or Reinsert.
func (q *Queue[T]) Insert(value T) *Element[T] {
	e := &Element[T]{Value: value, rank: value.Rank(), seq: q.seq}
	q.seq++
	idx := sort.Search(len(q.elems), func(i int) bool {
		return q.elems[i].rank > e.rank
	})
	q.elems = append(q.elems, nil)
	copy(q.elems[idx+1:], q.elems[idx:])
	q.elems[idx] = e
	return e
}

// Remove unlinks e from the structure. O(n); acceptable for the
// embedded thread counts this core targets (spec.md §4.2).
func (q *Queue[T]) Remove(e *Element[T]) {
	for i, cur := range q.elems {
		if cur == e {
			q.elems = append(q.elems[:i], q.elems[i+1:]...)
			return
		}
	}
}

// Reinsert re-sorts e after its underlying Ranked value's rank has
// changed (e.g. a real-time criterion's Update, or a priority()
// replacement). No-op if the rank did not actually move, so a
// dispatcher that calls Reinsert defensively on every LEAVE doesn't pay
// for a re-sort when nothing changed.
func (q *Queue[T]) Reinsert(e *Element[T]) {
	newRank := e.Value.Rank()
	if newRank == e.rank {
		return
	}
	q.Remove(e)
	e.rank = newRank
	idx := sort.Search(len(q.elems), func(i int) bool {
		return q.elems[i].rank > e.rank
	})
	q.elems = append(q.elems, nil)
	copy(q.elems[idx+1:], q.elems[idx:])
	q.elems[idx] = e
}

// Head returns the lowest-ranked element without removing it, and false
// if the structure is empty.
func (q *Queue[T]) Head() (*Element[T], bool) {
	if len(q.elems) == 0 {
		return nil, false
	}
	return q.elems[0], true
}

// Pop removes and returns the lowest-ranked element.
func (q *Queue[T]) Pop() (*Element[T], bool) {
	e, ok := q.Head()
	if !ok {
		return nil, false
	}
	q.Remove(e)
	return e, true
}

// Chosen returns the element at position k in rank order without
// removing it — the per-CPU head under the global multi-head shape
// (spec.md §3: "chosen() on CPU k returns the k-th ranked element").
// k is 0-based; false if the structure has fewer than k+1 elements.
func (q *Queue[T]) Chosen(k int) (*Element[T], bool) {
	if k < 0 || k >= len(q.elems) {
		return nil, false
	}
	return q.elems[k], true
}

// ForEach visits every element in rank order, lowest first. Used for
// bulk priority updates (spec.md §4.2: "iterator for bulk priority
// updates"). fn must not mutate the structure; collect changes and
// apply them after ForEach returns.
func (q *Queue[T]) ForEach(fn func(*Element[T])) {
	for _, e := range q.elems {
		fn(e)
	}
}
