package core

import (
	"context"
	"fmt"
	"log"
	"math/bits"

	"runsort/pkg/common"
	"runsort/pkg/core/memory"
	"runsort/pkg/storage/runfile"
)

// Merger combines a RunSet into one sorted output file and consumes the runs.
type Merger interface {
	Merge(ctx context.Context, rs RunSet, output string) error
}

// recordWriter is satisfied by runfile.Builder and the output wrapper.
type recordWriter interface {
	Add(r common.Record) error
}

// kway merges runs into w through a min-queue of run heads. Equal records
// leave in run order. Every opened iterator is closed before kway returns.
func (ws *Workspace) kway(ctx context.Context, runs []Run, w recordWriter, onRecord func(done int64)) error {
	compare := ws.Opts.Ordering.Compare
	iters := make([]*runfile.Iterator, len(runs))
	defer func() {
		for _, it := range iters {
			if it != nil {
				it.Close()
			}
		}
	}()

	q := memory.NewQueue[common.Record](compare)
	for i, r := range runs {
		it, err := runfile.Open(r.Path, ws.Opts.Ordering)
		if err != nil {
			return err
		}
		iters[i] = it
		if it.Next() {
			q.Push(it.Record(), i)
		} else if err := it.Err(); err != nil {
			return err
		}
	}

	var done int64
	for q.Len() > 0 {
		e, _ := q.Pop()
		if err := w.Add(e.Value); err != nil {
			return err
		}
		done++
		if err := cancelled(ctx, done); err != nil {
			return err
		}
		if onRecord != nil && done%checkEvery == 0 {
			onRecord(done)
		}

		it := iters[e.Source]
		if it.Next() {
			q.Push(it.Record(), e.Source)
		} else if err := it.Err(); err != nil {
			return err
		}
	}
	return nil
}

// KWayMerger merges every run in a single pass.
type KWayMerger struct {
	ws *Workspace
}

func NewKWayMerger(ws *Workspace) *KWayMerger {
	return &KWayMerger{ws: ws}
}

func (m *KWayMerger) Merge(ctx context.Context, rs RunSet, path string) error {
	if ok, err := m.ws.finishTrivial(rs, path); ok {
		return err
	}

	out, err := createOutput(path)
	if err != nil {
		return err
	}
	total := rs.Records()
	err = m.ws.kway(ctx, rs.Runs, out, func(done int64) {
		m.ws.mergeProgress(float64(done)/float64(total), "")
	})
	if err != nil {
		out.Abort()
		return err
	}
	if err := out.commit(); err != nil {
		return err
	}
	m.ws.removeRuns(rs.Runs...)
	m.ws.Stats.SetMergePasses(1)
	log.Printf("[Merge] %s: merged %d runs in one pass", m.ws.ID, len(rs.Runs))
	return nil
}

// PairwiseMerger merges adjacent pairs of runs, stage after stage, until one
// run is left. An odd run out is carried into the next stage untouched. The
// last stage writes straight to the output.
type PairwiseMerger struct {
	ws *Workspace
}

func NewPairwiseMerger(ws *Workspace) *PairwiseMerger {
	return &PairwiseMerger{ws: ws}
}

func (m *PairwiseMerger) Merge(ctx context.Context, rs RunSet, path string) error {
	if ok, err := m.ws.finishTrivial(rs, path); ok {
		return err
	}

	runs := rs.Runs
	stages := bits.Len(uint(len(runs) - 1))
	stage := 0
	for len(runs) > 1 {
		stage++
		last := len(runs) == 2
		pairs := len(runs) / 2
		next := make([]Run, 0, pairs+1)

		for i := 0; i+1 < len(runs); i += 2 {
			if err := ctx.Err(); err != nil {
				return err
			}
			merged, err := m.mergePair(ctx, runs[i], runs[i+1], stage, last, path)
			if err != nil {
				return err
			}
			m.ws.removeRuns(runs[i], runs[i+1])
			next = append(next, merged)

			done := float64(stage-1) + float64(i/2+1)/float64(pairs)
			m.ws.mergeProgress(done/float64(stages), "")
		}
		if len(runs)%2 == 1 {
			next = append(next, runs[len(runs)-1])
		}
		log.Printf("[Merge] %s: stage %d left %d runs", m.ws.ID, stage, len(next))
		runs = next
	}
	m.ws.Stats.SetMergePasses(stage)
	return nil
}

// mergePair merges two runs. Ties take the left run.
func (m *PairwiseMerger) mergePair(ctx context.Context, left, right Run, stage int, final bool, path string) (Run, error) {
	ordering := m.ws.Opts.Ordering

	var (
		w      recordWriter
		abort  func()
		finish func() error
		built  func() Run
	)
	if final {
		out, err := createOutput(path)
		if err != nil {
			return Run{}, err
		}
		w, abort, finish = out, out.Abort, out.commit
		built = func() Run { return Run{Path: path, Records: out.Count(), Bytes: out.Bytes()} }
	} else {
		b, err := runfile.NewBuilder(m.ws.Temp.NewPath(fmt.Sprintf("stage%d", stage)))
		if err != nil {
			return Run{}, err
		}
		w, abort, finish = b, b.Abort, b.Close
		built = func() Run { return Run{Path: b.Path(), Records: b.Count(), Bytes: b.Bytes()} }
	}

	if err := merge2(ctx, left, right, ordering, w); err != nil {
		abort()
		return Run{}, err
	}
	if err := finish(); err != nil {
		abort()
		return Run{}, err
	}
	return built(), nil
}

func merge2(ctx context.Context, left, right Run, ordering common.Ordering, w recordWriter) error {
	l, err := runfile.Open(left.Path, ordering)
	if err != nil {
		return err
	}
	defer l.Close()
	r, err := runfile.Open(right.Path, ordering)
	if err != nil {
		return err
	}
	defer r.Close()

	var n int64
	lok, rok := l.Next(), r.Next()
	for lok && rok {
		n++
		if err := cancelled(ctx, n); err != nil {
			return err
		}
		if ordering.Compare(l.Record(), r.Record()) <= 0 {
			if err := w.Add(l.Record()); err != nil {
				return err
			}
			lok = l.Next()
		} else {
			if err := w.Add(r.Record()); err != nil {
				return err
			}
			rok = r.Next()
		}
	}
	for ; lok; lok = l.Next() {
		n++
		if err := cancelled(ctx, n); err != nil {
			return err
		}
		if err := w.Add(l.Record()); err != nil {
			return err
		}
	}
	for ; rok; rok = r.Next() {
		n++
		if err := cancelled(ctx, n); err != nil {
			return err
		}
		if err := w.Add(r.Record()); err != nil {
			return err
		}
	}
	if err := l.Err(); err != nil {
		return err
	}
	return r.Err()
}

// ConcatMerger writes range-partitioned runs back to back. Anything else is
// handed to a k-way merge.
type ConcatMerger struct {
	ws *Workspace
}

func NewConcatMerger(ws *Workspace) *ConcatMerger {
	return &ConcatMerger{ws: ws}
}

func (m *ConcatMerger) Merge(ctx context.Context, rs RunSet, path string) error {
	if !rs.Partitioned {
		return NewKWayMerger(m.ws).Merge(ctx, rs, path)
	}
	if ok, err := m.ws.finishTrivial(rs, path); ok {
		return err
	}

	out, err := createOutput(path)
	if err != nil {
		return err
	}
	for i, run := range rs.Runs {
		if err := ctx.Err(); err != nil {
			out.Abort()
			return err
		}
		if err := m.copyRun(run, out); err != nil {
			out.Abort()
			return err
		}
		m.ws.mergeProgress(float64(i+1)/float64(len(rs.Runs)), "")
	}
	if err := out.commit(); err != nil {
		return err
	}
	m.ws.removeRuns(rs.Runs...)
	m.ws.Stats.SetMergePasses(1)
	log.Printf("[Merge] %s: concatenated %d buckets", m.ws.ID, len(rs.Runs))
	return nil
}

func (m *ConcatMerger) copyRun(run Run, w recordWriter) error {
	it, err := runfile.Open(run.Path, m.ws.Opts.Ordering)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if err := w.Add(it.Record()); err != nil {
			return err
		}
	}
	return it.Err()
}
