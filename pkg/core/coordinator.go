package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"runsort/pkg/monitor"
	"runsort/pkg/storage"
)

// Coordinator runs several algorithms over the same input, either side by
// side or one after another, and compares what they produced.
type Coordinator struct {
	Options     Options
	TempDir     string
	Concurrent  bool
	MaxParallel int // concurrent mode only; <= 0 means no limit

	Sink  monitor.ProgressSink   // optional
	Stats *monitor.WorkloadStats // optional
	Store storage.Backend        // optional results history
}

// Summary is what one coordinated session produced.
type Summary struct {
	Session string   `json:"session"`
	Results []Result `json:"results"`

	// Consistent is false when successful outputs disagree on content.
	Consistent bool `json:"consistent"`
}

// OutputPath is where algorithm id writes the sorted form of input.
func OutputPath(outputDir, input, id string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outputDir, base+"."+id+".sorted")
}

// Run sorts inputs once per algorithm ID. A failing pipeline never stops the
// others; the returned error joins every failure and Summary holds every
// result, failed or not.
func (c *Coordinator) Run(ctx context.Context, inputs []string, outputDir string, ids []string) (*Summary, error) {
	if len(inputs) == 0 {
		return nil, errors.New("coordinator: no input files")
	}
	algos, err := resolve(ids)
	if err != nil {
		return nil, err
	}

	parallel := 1
	if c.Concurrent {
		parallel = len(algos)
		if c.MaxParallel > 0 && c.MaxParallel < parallel {
			parallel = c.MaxParallel
		}
	}
	opts := c.Options.normalize()
	opts.Budget = max(opts.Budget/int64(parallel), 1)

	sum := &Summary{
		Session:    uuid.NewString(),
		Results:    make([]Result, len(algos)),
		Consistent: true,
	}
	log.Printf("[Coordinator] Session %s: %d algorithms, %d at a time, budget %d bytes each",
		sum.Session, len(algos), parallel, opts.Budget)

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, a := range algos {
		g.Go(func() error {
			sum.Results[i] = c.runOne(ctx, a, opts, inputs, OutputPath(outputDir, inputs[0], a.ID))
			return nil
		})
	}
	g.Wait()

	var errs []error
	var reference string
	for _, r := range sum.Results {
		if !r.OK() {
			errs = append(errs, r.Err)
			continue
		}
		if reference == "" {
			reference = r.Fingerprint
		} else if r.Fingerprint != reference {
			sum.Consistent = false
		}
	}
	if !sum.Consistent {
		log.Printf("[Coordinator] Session %s: outputs disagree on content", sum.Session)
	}
	c.persist(sum)
	return sum, errors.Join(errs...)
}

func (c *Coordinator) runOne(ctx context.Context, a Algorithm, opts Options, inputs []string, output string) Result {
	ps := monitor.NewPipelineStats()
	p := &Pipeline{
		Algorithm: a,
		Options:   opts,
		TempDir:   c.TempDir,
		Sink:      c.Sink,
		Stats:     ps,
	}
	res, err := p.Run(ctx, inputs, output)
	if err == nil {
		res.Err = checkOutput(&res, opts)
	}
	if c.Stats != nil {
		c.Stats.RecordPipeline(res.OK(), ps)
	}
	return res
}

// checkOutput verifies a finished output and stores its fingerprint.
func checkOutput(res *Result, opts Options) error {
	v, err := Verify(res.Output, opts.Ordering)
	if err != nil {
		return fmt.Errorf("%s: verify: %w", res.Algorithm, err)
	}
	res.Fingerprint = v.Fingerprint
	if !v.Sorted {
		return fmt.Errorf("%s: output out of order at record %d", res.Algorithm, v.Disorder)
	}
	if v.Records != res.Records {
		return fmt.Errorf("%s: output has %d records, read %d", res.Algorithm, v.Records, res.Records)
	}
	return nil
}

func (c *Coordinator) persist(sum *Summary) {
	if c.Store == nil {
		return
	}
	records := make([]storage.ResultRecord, 0, len(sum.Results))
	for _, r := range sum.Results {
		rec := storage.ResultRecord{
			Session:     sum.Session,
			Algorithm:   r.Algorithm,
			Name:        r.Name,
			Inputs:      strings.Join(r.Inputs, ","),
			Output:      r.Output,
			Records:     r.Records,
			Malformed:   r.Malformed,
			Runs:        r.Runs,
			MergePasses: r.MergePasses,
			Bytes:       r.Bytes,
			DurationMS:  r.Duration.Milliseconds(),
			Status:      "ok",
			Fingerprint: r.Fingerprint,
			StartedAt:   r.StartedAt.UnixNano(),
		}
		if !r.OK() {
			rec.Status = "failed"
			rec.Error = r.Err.Error()
		}
		records = append(records, rec)
	}
	if err := c.Store.BatchWrite(records); err != nil {
		log.Printf("[Coordinator] Failed to persist results: %v", err)
	}
}

// resolve looks up ids, dropping duplicates.
func resolve(ids []string) ([]Algorithm, error) {
	if len(ids) == 0 {
		return Algorithms(), nil
	}
	seen := make(map[string]bool, len(ids))
	var out []Algorithm
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		a, err := LookupAlgorithm(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Elapsed formats a duration the way the result table prints it.
func Elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
