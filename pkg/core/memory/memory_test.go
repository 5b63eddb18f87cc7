package memory

import (
	"cmp"
	"testing"

	"runsort/pkg/common"
)

func rec(s string) common.Record { return common.Record{Line: s} }

func TestChunkBufferBudget(t *testing.T) {
	one := rec("abcd").Size()
	b := NewChunkBuffer(2*one, 0)

	if !b.Fits(rec("abcd")) {
		t.Fatal("empty buffer must accept a record")
	}
	b.Put(rec("abcd"))
	if !b.Fits(rec("efgh")) {
		t.Fatal("second record fits exactly")
	}
	b.Put(rec("efgh"))
	if b.Fits(rec("i")) {
		t.Fatal("third record must not fit")
	}
	if b.Size() != 2*one || b.Count() != 2 {
		t.Fatalf("unexpected size=%d count=%d", b.Size(), b.Count())
	}

	b.Reset()
	if b.Size() != 0 || b.Count() != 0 {
		t.Fatal("reset must empty the buffer")
	}

	huge := rec(string(make([]byte, 10*one)))
	if !b.Fits(huge) {
		t.Fatal("oversized record must fit an empty buffer")
	}
}

func TestChunkBufferRecordCap(t *testing.T) {
	b := NewChunkBuffer(1<<20, 2)
	b.Put(rec("a"))
	b.Put(rec("b"))
	if b.Fits(rec("c")) {
		t.Fatal("record cap reached, expected Fits=false")
	}
}

func TestChunkBufferSortedIsStable(t *testing.T) {
	b := NewChunkBuffer(1<<20, 0)
	for _, s := range []string{"banana", "apple", "Apple", "APPLE", "cherry"} {
		b.Put(rec(s))
	}
	got := b.Sorted(common.NewTextOrdering(1).Compare)
	want := []string{"apple", "Apple", "APPLE", "banana", "cherry"}
	for i, r := range got {
		if r.Line != want[i] {
			t.Fatalf("position %d: got %q want %q", i, r.Line, want[i])
		}
	}
}

func TestQueueOrdersBySourceThenInsertion(t *testing.T) {
	q := NewQueue[int](cmp.Compare[int])
	q.Push(5, 2)
	q.Push(1, 1)
	q.Push(5, 0)
	q.Push(5, 2)
	q.Push(3, 0)

	if e, ok := q.Peek(); !ok || e.Value != 1 {
		t.Fatalf("peek: got %+v ok=%v", e, ok)
	}

	type pair struct{ v, src int }
	want := []pair{{1, 1}, {3, 0}, {5, 0}, {5, 2}, {5, 2}}
	for i, w := range want {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if e.Value != w.v || e.Source != w.src {
			t.Fatalf("pop %d: got (%d,%d) want (%d,%d)", i, e.Value, e.Source, w.v, w.src)
		}
	}
	if _, ok := q.Pop(); ok || q.Len() != 0 {
		t.Fatal("expected empty queue")
	}
}

func TestQueueKeepsDuplicates(t *testing.T) {
	q := NewQueue[common.Record](common.NewTextOrdering(1).Compare)
	for _, s := range []string{"b", "a", "A", "a"} {
		q.Push(rec(s), 0)
	}
	if q.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", q.Len())
	}
	var got []string
	for q.Len() > 0 {
		e, _ := q.Pop()
		got = append(got, e.Value.Line)
	}
	want := []string{"a", "A", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	q.Push(rec("z"), 0)
	q.Clear()
	if q.Len() != 0 {
		t.Fatal("clear must empty the queue")
	}
}
