package core

import (
	"context"
	"math"
	"os"

	"runsort/pkg/common"
	"runsort/pkg/monitor"
	"runsort/pkg/storage"
	"runsort/pkg/storage/runfile"
)

// Records between two cancellation checks inside a streaming loop.
const checkEvery = 4096

// Workspace is everything one pipeline owns while it runs. Generators and
// mergers of the same pipeline share it; different pipelines never do.
type Workspace struct {
	ID    string
	Opts  Options
	Temp  *storage.TempSpace
	Sink  monitor.ProgressSink
	Stats *monitor.PipelineStats

	lastPercent int
}

func NewWorkspace(id string, opts Options, temp *storage.TempSpace, sink monitor.ProgressSink) *Workspace {
	if sink == nil {
		sink = monitor.NopSink{}
	}
	return &Workspace{
		ID:          id,
		Opts:        opts.normalize(),
		Temp:        temp,
		Sink:        sink,
		Stats:       monitor.NewPipelineStats(),
		lastPercent: -1,
	}
}

// Generation covers the first half of the progress bar, merging the second.
func (ws *Workspace) generateProgress(frac float64, message string) {
	ws.progress(int(clampFrac(frac)*50), message)
}

func (ws *Workspace) mergeProgress(frac float64, message string) {
	ws.progress(50+int(clampFrac(frac)*50), message)
}

func (ws *Workspace) progress(percent int, message string) {
	if percent <= ws.lastPercent && message == "" {
		return
	}
	if percent > ws.lastPercent {
		ws.lastPercent = percent
	}
	ws.Sink.Report(ws.ID, percent, message)
}

func clampFrac(f float64) float64 {
	switch {
	case f < 0 || math.IsNaN(f):
		return 0
	case f > 1:
		return 1
	}
	return f
}

// writeRun writes already sorted records to a new temp run.
func (ws *Workspace) writeRun(kind string, records []common.Record) (Run, error) {
	b, err := runfile.NewBuilder(ws.Temp.NewPath(kind))
	if err != nil {
		return Run{}, err
	}
	for _, r := range records {
		if err := b.Add(r); err != nil {
			b.Abort()
			return Run{}, err
		}
	}
	if err := b.Close(); err != nil {
		b.Abort()
		return Run{}, err
	}
	return Run{Path: b.Path(), Records: b.Count(), Bytes: b.Bytes()}, nil
}

func (ws *Workspace) removeRuns(runs ...Run) {
	for _, r := range runs {
		ws.Temp.Remove(r.Path)
	}
}

// output is the final file being produced. Records go to <path>.partial
// and the file is renamed into place by commit.
type output struct {
	*runfile.Builder
	final string
}

func createOutput(path string) (*output, error) {
	b, err := runfile.NewBuilder(path + ".partial")
	if err != nil {
		return nil, err
	}
	return &output{Builder: b, final: path}, nil
}

func (o *output) commit() error {
	if err := o.Close(); err != nil {
		o.Abort()
		return err
	}
	if err := os.Rename(o.Path(), o.final); err != nil {
		o.Abort()
		return common.WrapIO("rename output", o.final, err)
	}
	return nil
}

// finishTrivial handles the run sets that need no merging: none, which
// produces an empty output, and one, which is moved into place. It reports
// whether rs was handled.
func (ws *Workspace) finishTrivial(rs RunSet, path string) (bool, error) {
	switch len(rs.Runs) {
	case 0:
		f, err := os.Create(path)
		if err != nil {
			return true, common.WrapIO("create output", path, err)
		}
		return true, common.WrapIO("close output", path, f.Close())
	case 1:
		src := rs.Runs[0].Path
		if err := storage.MoveFile(src, path); err != nil {
			return true, err
		}
		ws.Temp.Release(src)
		return true, nil
	}
	return false, nil
}

// cancelled checks ctx on the first record and every checkEvery after that.
func cancelled(ctx context.Context, n int64) error {
	if n != 1 && n%checkEvery != 0 {
		return nil
	}
	return ctx.Err()
}
