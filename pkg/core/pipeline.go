package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"runsort/pkg/common"
	"runsort/pkg/monitor"
	"runsort/pkg/storage"
)

// How many malformed tokens a pipeline logs before going quiet.
const malformedLogLimit = 5

// Pipeline sorts one input with one algorithm: generate runs, merge them,
// clean up.
type Pipeline struct {
	Algorithm Algorithm
	Options   Options
	TempDir   string
	Sink      monitor.ProgressSink
	Stats     *monitor.PipelineStats // optional; a fresh one is used when nil
}

// Result is the outcome of one pipeline run.
type Result struct {
	Algorithm   string        `json:"algorithm"`
	Name        string        `json:"name"`
	Inputs      []string      `json:"inputs"`
	Output      string        `json:"output"`
	Records     int64         `json:"records"`
	Malformed   int64         `json:"malformed"`
	Runs        int           `json:"runs"`
	MergePasses int           `json:"merge_passes"`
	Bytes       int64         `json:"bytes"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Err         error         `json:"-"`
}

func (r Result) OK() bool { return r.Err == nil }

// Run sorts inputs, concatenated, into output. Temporary files are removed
// whether or not it succeeds. The returned Result is filled in as far as the
// run got, and its Err equals the returned error.
func (p *Pipeline) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	res := Result{
		Algorithm: p.Algorithm.ID,
		Name:      p.Algorithm.Name,
		Inputs:    inputs,
		Output:    output,
		StartedAt: time.Now(),
	}
	var ws *Workspace
	collect := func() {
		res.Duration = time.Since(res.StartedAt)
		if ws != nil {
			res.Records = ws.Stats.Records.Load()
			res.Malformed = ws.Stats.Malformed.Load()
			res.MergePasses = int(ws.Stats.MergePasses.Load())
		}
	}
	fail := func(err error) (Result, error) {
		collect()
		res.Err = err
		log.Printf("[Pipeline] %s failed after %v: %v", res.Algorithm, res.Duration, err)
		return res, err
	}
	if len(inputs) == 0 {
		return fail(fmt.Errorf("%s: no input files", p.Algorithm.ID))
	}

	temp, err := storage.NewTempSpace(p.TempDir, p.Algorithm.ID)
	if err != nil {
		return fail(err)
	}
	ws = NewWorkspace(p.Algorithm.ID, p.Options, temp, p.Sink)
	if p.Stats != nil {
		ws.Stats = p.Stats
	}
	defer func() {
		if n := temp.Cleanup(); n > 0 {
			log.Printf("[Pipeline] %s: removed %d temporary files", res.Algorithm, n)
		}
	}()

	in, err := storage.NewFileInput(inputs, ws.Opts.Ordering, ws.Opts.Tokenize)
	if err != nil {
		return fail(err)
	}
	in.OnMalformed = func(token string, err error) {
		if n := ws.Stats.RecordMalformed(); n <= malformedLogLimit {
			log.Printf("[Pipeline] %s: skipping %v", res.Algorithm, err)
		}
	}
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fail(common.WrapIO("create output dir", dir, err))
		}
	}

	ws.progress(0, "generating runs")
	rs, err := p.Algorithm.NewGenerator(ws).Generate(ctx, in)
	if err != nil {
		return fail(fmt.Errorf("%s: generate runs: %w", p.Algorithm.ID, err))
	}
	for _, r := range rs.Runs {
		ws.Stats.RecordRun(r.Bytes)
	}
	res.Runs = rs.Len()
	res.Bytes = rs.Bytes()

	ws.progress(50, "merging")
	if err := p.Algorithm.NewMerger(ws).Merge(ctx, rs, output); err != nil {
		return fail(fmt.Errorf("%s: merge: %w", p.Algorithm.ID, err))
	}
	collect()
	ws.progress(100, "done")

	log.Printf("[Pipeline] %s: %d records, %d runs, %d merge passes in %v",
		res.Algorithm, res.Records, res.Runs, res.MergePasses, res.Duration)
	return res, nil
}
