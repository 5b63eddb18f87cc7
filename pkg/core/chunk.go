package core

import (
	"context"
	"log"

	"github.com/dustin/go-humanize"

	"runsort/pkg/common"
	"runsort/pkg/core/memory"
)

// Generator turns an input into sorted runs without holding more than the
// memory budget of records at once.
type Generator interface {
	Generate(ctx context.Context, in common.Input) (RunSet, error)
}

// ChunkGenerator fills a bounded buffer, sorts it and writes it out, over and
// over. It backs the one_way and k_way algorithms.
type ChunkGenerator struct {
	ws *Workspace
}

func NewChunkGenerator(ws *Workspace) *ChunkGenerator {
	return &ChunkGenerator{ws: ws}
}

func (g *ChunkGenerator) Generate(ctx context.Context, in common.Input) (RunSet, error) {
	s, err := in.Open()
	if err != nil {
		return RunSet{}, err
	}
	defer s.Close()

	size := in.Size()
	runs, n, err := g.ws.chunkRuns(ctx, s, "chunk", func(offset int64) {
		if size > 0 {
			g.ws.generateProgress(float64(offset)/float64(size), "")
		}
	})
	g.ws.Stats.AddRecords(int(n))
	if err != nil {
		g.ws.removeRuns(runs...)
		return RunSet{}, err
	}
	log.Printf("[Chunk] %s: %d records in %d runs", g.ws.ID, n, len(runs))
	return RunSet{Runs: runs}, nil
}

// chunkRuns reads s in passes of up to BatchSize records. A pass ends early
// when the next record does not fit the buffer. The buffer is sorted and
// flushed as one run when it is full or a pass came back short of
// MinBatchRecords. It returns the runs written and the records read.
func (ws *Workspace) chunkRuns(ctx context.Context, s common.Stream, kind string, onPass func(offset int64)) ([]Run, int64, error) {
	opts := ws.Opts
	buf := memory.NewChunkBuffer(opts.Budget, opts.MaxChunkRecords)
	defer buf.Release()

	var (
		runs       []Run
		read       int64
		pending    common.Record
		hasPending bool
		exhausted  bool
	)
	flush := func() error {
		if buf.Count() == 0 {
			return nil
		}
		size := buf.Size()
		run, err := ws.writeRun(kind, buf.Sorted(opts.Ordering.Compare))
		if err != nil {
			return err
		}
		runs = append(runs, run)
		log.Printf("[Chunk] %s: flushed run %d (%d records, %s resident)",
			ws.ID, len(runs), run.Records, humanize.IBytes(uint64(size)))
		buf.Reset()
		return nil
	}

	for !exhausted || hasPending {
		if err := ctx.Err(); err != nil {
			return runs, read, err
		}

		pass, full := 0, false
		for pass < opts.BatchSize {
			var r common.Record
			if hasPending {
				r, hasPending = pending, false
			} else {
				if !s.Next() {
					exhausted = true
					break
				}
				r = s.Record()
				read++
			}
			if !buf.Fits(r) {
				pending, hasPending = r, true
				full = true
				break
			}
			buf.Put(r)
			pass++
		}
		if err := s.Err(); err != nil {
			return runs, read, err
		}

		if full || pass < opts.MinBatchRecords || exhausted {
			if err := flush(); err != nil {
				return runs, read, err
			}
		}
		if onPass != nil {
			onPass(s.Offset())
		}
	}
	return runs, read, flush()
}
