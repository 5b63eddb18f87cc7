package core

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/dustin/go-humanize"

	"runsort/pkg/common"
	"runsort/pkg/core/memory"
	"runsort/pkg/storage"
	"runsort/pkg/storage/runfile"
)

// BucketIndex maps key, already shifted so the range starts at 0, into one of
// buckets equal-width buckets covering [0, bound]. Out-of-range keys are
// clamped to the first or last bucket.
func BucketIndex(key, bound float64, buckets int) int {
	if buckets <= 1 || !(key > 0) {
		return 0
	}
	if bound < 0 {
		bound = 0
	}
	idx := math.Floor(key / (bound + 1) * float64(buckets))
	if !(idx < float64(buckets)) { // also NaN and +Inf
		return buckets - 1
	}
	return int(idx)
}

// shiftKey returns k and hi relative to lo. When the span overflows float64
// both are halved first so the keys stay spread over the buckets.
func shiftKey(k, lo, hi float64) (key, bound float64) {
	if math.IsInf(hi-lo, 0) {
		return k/2 - lo/2, hi/2 - lo/2
	}
	return k - lo, hi - lo
}

// BucketGenerator range-partitions the input into bucket files and sorts
// each bucket on its own. The resulting runs are ordered and disjoint.
type BucketGenerator struct {
	ws *Workspace
}

func NewBucketGenerator(ws *Workspace) *BucketGenerator {
	return &BucketGenerator{ws: ws}
}

func (g *BucketGenerator) Generate(ctx context.Context, in common.Input) (RunSet, error) {
	lo, hi, n, footprint, err := g.scan(ctx, in)
	if err != nil {
		return RunSet{}, err
	}
	g.ws.Stats.AddRecords(int(n))
	if n == 0 {
		return RunSet{Partitioned: true}, nil
	}
	if footprint <= g.ws.Opts.Budget {
		run, err := g.sortInMemory(in)
		if err != nil {
			return RunSet{}, err
		}
		return RunSet{Runs: []Run{run}, Partitioned: true}, nil
	}
	log.Printf("[Bucket] %s: %d records, key range [%g, %g]", g.ws.ID, n, lo, hi)

	runs, err := g.partition(ctx, in, lo, hi, 0, true)
	if err != nil {
		g.ws.removeRuns(runs...)
		return RunSet{}, err
	}
	log.Printf("[Bucket] %s: %d non-empty buckets", g.ws.ID, len(runs))
	return RunSet{Runs: runs, Partitioned: true}, nil
}

// scan is the first pass: the partition-key range, the record count and
// the memory the whole input would take.
func (g *BucketGenerator) scan(ctx context.Context, in common.Input) (lo, hi float64, n, footprint int64, err error) {
	s, err := in.Open()
	if err != nil {
		return 0, 0, 0, 0, err
	}
	defer s.Close()

	ordering := g.ws.Opts.Ordering
	size := in.Size()
	lo, hi = math.Inf(1), math.Inf(-1)
	for s.Next() {
		r := s.Record()
		k := ordering.PartitionKey(r)
		lo = math.Min(lo, k)
		hi = math.Max(hi, k)
		n++
		footprint += r.Size()
		if err := cancelled(ctx, n); err != nil {
			return 0, 0, 0, 0, err
		}
		if size > 0 && n%checkEvery == 0 {
			g.ws.generateProgress(0.25*float64(s.Offset())/float64(size), "")
		}
	}
	return lo, hi, n, footprint, s.Err()
}

// partition distributes in over BucketCount spill files keyed on [lo, hi]
// and sorts every non-empty bucket, smallest keys first. A bucket yields one
// run, or several if it had to be split again. top marks the call on the
// top-level input, which drives progress.
func (g *BucketGenerator) partition(ctx context.Context, in common.Input, lo, hi float64, depth int, top bool) ([]Run, error) {
	opts := g.ws.Opts
	spills := make([]*storage.SpillFile, opts.BucketCount)
	defer func() {
		for _, sp := range spills {
			if sp != nil {
				sp.Close()
				g.ws.Temp.Remove(sp.Path())
			}
		}
	}()

	if err := g.spill(ctx, in, lo, hi, depth, spills, top); err != nil {
		return nil, err
	}

	nonEmpty := 0
	for _, sp := range spills {
		if sp != nil {
			nonEmpty++
		}
	}

	var runs []Run
	done := 0
	for i, sp := range spills {
		if sp == nil {
			continue
		}
		if err := sp.Close(); err != nil {
			return runs, err
		}
		bucketRuns, err := g.sortBucket(ctx, sp, depth, nonEmpty > 1)
		runs = append(runs, bucketRuns...)
		if err != nil {
			return runs, err
		}
		g.ws.Temp.Remove(sp.Path())
		spills[i] = nil

		done++
		if top {
			g.ws.generateProgress(0.5+0.5*float64(done)/float64(nonEmpty), "")
		}
	}
	return runs, nil
}

// spill is the distribution pass.
func (g *BucketGenerator) spill(ctx context.Context, in common.Input, lo, hi float64, depth int, spills []*storage.SpillFile, top bool) error {
	s, err := in.Open()
	if err != nil {
		return err
	}
	defer s.Close()

	ordering := g.ws.Opts.Ordering
	size := in.Size()
	var n int64
	for s.Next() {
		r := s.Record()
		key, bound := shiftKey(ordering.PartitionKey(r), lo, hi)
		idx := BucketIndex(key, bound, len(spills))
		sp := spills[idx]
		if sp == nil {
			sp, err = storage.CreateSpill(g.ws.Temp.NewPath(fmt.Sprintf("bucket%d", depth)), ordering)
			if err != nil {
				return err
			}
			spills[idx] = sp
		}
		if err := sp.Append(r); err != nil {
			return err
		}
		n++
		if err := cancelled(ctx, n); err != nil {
			return err
		}
		if top && size > 0 && n%checkEvery == 0 {
			g.ws.generateProgress(0.25+0.25*float64(s.Offset())/float64(size), "")
		}
	}
	return s.Err()
}

// sortBucket produces the single run for one bucket. A bucket that fits the
// budget is sorted in memory. A bigger one is split again on its own key
// range while that can still make progress; otherwise it is chunk-sorted and
// k-way merged.
func (g *BucketGenerator) sortBucket(ctx context.Context, sp *storage.SpillFile, depth int, siblings bool) ([]Run, error) {
	opts := g.ws.Opts
	if sp.Footprint() <= opts.Budget {
		run, err := g.sortInMemory(sp)
		if err != nil {
			return nil, err
		}
		return []Run{run}, nil
	}

	blo, bhi := sp.KeyRange()
	if blo < bhi && depth+1 < opts.MaxBucketDepth && siblings {
		log.Printf("[Bucket] %s: re-bucketing %s (%s) at depth %d",
			g.ws.ID, sp.Path(), humanize.IBytes(uint64(sp.Footprint())), depth+1)
		return g.partition(ctx, sp, blo, bhi, depth+1, false)
	}

	log.Printf("[Bucket] %s: %s (%s) cannot be split further, falling back to chunk sort",
		g.ws.ID, sp.Path(), humanize.IBytes(uint64(sp.Footprint())))
	run, err := g.chunkSort(ctx, sp)
	if err != nil {
		return nil, err
	}
	return []Run{run}, nil
}

// sortInMemory loads all of in, which the caller knows fits the budget.
func (g *BucketGenerator) sortInMemory(in common.Input) (Run, error) {
	s, err := in.Open()
	if err != nil {
		return Run{}, err
	}
	defer s.Close()

	buf := memory.NewChunkBuffer(math.MaxInt64, 0)
	defer buf.Release()
	for s.Next() {
		buf.Put(s.Record())
	}
	if err := s.Err(); err != nil {
		return Run{}, err
	}
	return g.ws.writeRun("bucket", buf.Sorted(g.ws.Opts.Ordering.Compare))
}

func (g *BucketGenerator) chunkSort(ctx context.Context, sp *storage.SpillFile) (Run, error) {
	s, err := sp.Open()
	if err != nil {
		return Run{}, err
	}
	chunks, _, err := g.ws.chunkRuns(ctx, s, "bucket-chunk", nil)
	s.Close()
	if err != nil {
		g.ws.removeRuns(chunks...)
		return Run{}, err
	}
	if len(chunks) == 1 {
		return chunks[0], nil
	}

	b, err := runfile.NewBuilder(g.ws.Temp.NewPath("bucket"))
	if err != nil {
		g.ws.removeRuns(chunks...)
		return Run{}, err
	}
	if err := g.ws.kway(ctx, chunks, b, nil); err != nil {
		b.Abort()
		g.ws.removeRuns(chunks...)
		return Run{}, err
	}
	if err := b.Close(); err != nil {
		b.Abort()
		g.ws.removeRuns(chunks...)
		return Run{}, err
	}
	g.ws.removeRuns(chunks...)
	return Run{Path: b.Path(), Records: b.Count(), Bytes: b.Bytes()}, nil
}
