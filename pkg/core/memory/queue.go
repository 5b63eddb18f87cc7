package memory

import (
	"github.com/google/btree"
)

const queueDegree = 32

// Entry is a queued value tagged with the ID of the stream it came from.
type Entry[T any] struct {
	Value  T
	Source int
	seq    uint64
}

// Queue is a min-priority queue ordered by compare, then by Source, then by
// insertion order, so equal values leave in a deterministic, stable order.
// It stores stream IDs, never stream handles.
type Queue[T any] struct {
	tree *btree.BTreeG[Entry[T]]
	seq  uint64
}

func NewQueue[T any](compare func(a, b T) int) *Queue[T] {
	less := func(a, b Entry[T]) bool {
		if c := compare(a.Value, b.Value); c != 0 {
			return c < 0
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.seq < b.seq
	}
	return &Queue[T]{tree: btree.NewG(queueDegree, less)}
}

func (q *Queue[T]) Push(v T, source int) {
	q.seq++
	q.tree.ReplaceOrInsert(Entry[T]{Value: v, Source: source, seq: q.seq})
}

// Pop removes and returns the smallest entry.
func (q *Queue[T]) Pop() (Entry[T], bool) {
	return q.tree.DeleteMin()
}

func (q *Queue[T]) Peek() (Entry[T], bool) {
	return q.tree.Min()
}

func (q *Queue[T]) Len() int {
	return q.tree.Len()
}

func (q *Queue[T]) Clear() {
	q.tree.Clear(false)
}
