package core

import (
	"context"
	"log"

	"runsort/pkg/common"
	"runsort/pkg/core/memory"
	"runsort/pkg/storage/runfile"
)

// ReplacementGenerator produces runs by replacement selection. On random
// input runs come out about twice as long as the buffer; on sorted input the
// whole file is one run.
type ReplacementGenerator struct {
	ws *Workspace
}

func NewReplacementGenerator(ws *Workspace) *ReplacementGenerator {
	return &ReplacementGenerator{ws: ws}
}

func (g *ReplacementGenerator) Generate(ctx context.Context, in common.Input) (RunSet, error) {
	s, err := in.Open()
	if err != nil {
		return RunSet{}, err
	}
	defer s.Close()

	opts := g.ws.Opts
	compare := opts.Ordering.Compare
	current := memory.NewQueue[common.Record](compare)
	next := memory.NewQueue[common.Record](compare)
	size := in.Size()

	var (
		resident   int64
		read       int64
		runs       []Run
		out        *runfile.Builder
		pending    common.Record
		hasPending bool
	)

	fail := func(err error) (RunSet, error) {
		if out != nil {
			out.Abort()
		}
		g.ws.Stats.AddRecords(int(read))
		g.ws.removeRuns(runs...)
		return RunSet{}, err
	}

	// take returns the held-back record first, then the stream.
	take := func() (common.Record, bool) {
		if hasPending {
			hasPending = false
			return pending, true
		}
		if !s.Next() {
			return common.Record{}, false
		}
		read++
		return s.Record(), true
	}
	// admit reports whether r may join the queues. An empty heap always
	// admits so an oversized record cannot stall the loop.
	admit := func(r common.Record) bool {
		queued := current.Len() + next.Len()
		if queued == 0 {
			return true
		}
		return queued < opts.ReplacementBuffer && resident+r.Size() <= opts.Budget
	}

	for current.Len() < opts.ReplacementBuffer {
		r, ok := take()
		if !ok {
			break
		}
		if !admit(r) {
			pending, hasPending = r, true
			break
		}
		current.Push(r, 0)
		resident += r.Size()
	}

	var last common.Record
	for emitted := int64(1); ; emitted++ {
		if err := cancelled(ctx, emitted); err != nil {
			return fail(err)
		}

		if current.Len() == 0 {
			if out != nil {
				if err := out.Close(); err != nil {
					return fail(err)
				}
				runs = append(runs, Run{Path: out.Path(), Records: out.Count(), Bytes: out.Bytes()})
				out = nil
			}
			if next.Len() == 0 {
				// both heaps drained; start over from the source, if anything is left
				r, ok := take()
				if !ok {
					break
				}
				current.Push(r, 0)
				resident += r.Size()
				continue
			}
			current, next = next, current
			continue
		}

		e, _ := current.Pop()
		resident -= e.Value.Size()
		if out == nil {
			b, err := runfile.NewBuilder(g.ws.Temp.NewPath("replacement"))
			if err != nil {
				return fail(err)
			}
			out = b
		}
		if err := out.Add(e.Value); err != nil {
			return fail(err)
		}
		last = e.Value

		r, ok := take()
		if !ok {
			continue
		}
		if !admit(r) {
			pending, hasPending = r, true
			continue
		}
		if compare(r, last) >= 0 {
			current.Push(r, 0)
		} else {
			next.Push(r, 0)
		}
		resident += r.Size()

		if size > 0 && emitted%checkEvery == 0 {
			g.ws.generateProgress(float64(s.Offset())/float64(size), "")
		}
	}
	if err := s.Err(); err != nil {
		return fail(err)
	}

	g.ws.Stats.AddRecords(int(read))
	log.Printf("[Replacement] %s: %d records in %d runs", g.ws.ID, read, len(runs))
	return RunSet{Runs: runs}, nil
}
