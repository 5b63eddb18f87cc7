package monitor

import (
	"sync/atomic"
)

// PipelineStats counts what one pipeline did. Fields are updated with atomics
// so the dashboard can read them while the pipeline runs.
type PipelineStats struct {
	Records     atomic.Int64
	Malformed   atomic.Int64
	Runs        atomic.Int64
	MergePasses atomic.Int64
	RunBytes    atomic.Int64
}

func NewPipelineStats() *PipelineStats {
	return &PipelineStats{}
}

func (ps *PipelineStats) AddRecords(n int) {
	ps.Records.Add(int64(n))
}

func (ps *PipelineStats) RecordMalformed() int64 {
	return ps.Malformed.Add(1)
}

func (ps *PipelineStats) RecordRun(bytes int64) {
	ps.Runs.Add(1)
	ps.RunBytes.Add(bytes)
}

func (ps *PipelineStats) SetMergePasses(n int) {
	ps.MergePasses.Store(int64(n))
}

// WorkloadStats aggregates every pipeline a process has run.
type WorkloadStats struct {
	PipelinesOK     uint64
	PipelinesFailed uint64
	Records         uint64
	Malformed       uint64
	Runs            uint64
	MergePasses     uint64
}

func NewWorkloadStats() *WorkloadStats {
	return &WorkloadStats{}
}

// RecordPipeline folds a finished pipeline's counters into the totals.
func (ws *WorkloadStats) RecordPipeline(ok bool, ps *PipelineStats) {
	if ok {
		atomic.AddUint64(&ws.PipelinesOK, 1)
	} else {
		atomic.AddUint64(&ws.PipelinesFailed, 1)
	}
	if ps == nil {
		return
	}
	atomic.AddUint64(&ws.Records, uint64(ps.Records.Load()))
	atomic.AddUint64(&ws.Malformed, uint64(ps.Malformed.Load()))
	atomic.AddUint64(&ws.Runs, uint64(ps.Runs.Load()))
	atomic.AddUint64(&ws.MergePasses, uint64(ps.MergePasses.Load()))
}

// WorkloadSnapshot is a consistent-enough copy for reporting.
type WorkloadSnapshot struct {
	PipelinesOK     uint64 `json:"pipelines_ok"`
	PipelinesFailed uint64 `json:"pipelines_failed"`
	Records         uint64 `json:"records"`
	Malformed       uint64 `json:"malformed"`
	Runs            uint64 `json:"runs"`
	MergePasses     uint64 `json:"merge_passes"`
}

func (ws *WorkloadStats) Snapshot() WorkloadSnapshot {
	return WorkloadSnapshot{
		PipelinesOK:     atomic.LoadUint64(&ws.PipelinesOK),
		PipelinesFailed: atomic.LoadUint64(&ws.PipelinesFailed),
		Records:         atomic.LoadUint64(&ws.Records),
		Malformed:       atomic.LoadUint64(&ws.Malformed),
		Runs:            atomic.LoadUint64(&ws.Runs),
		MergePasses:     atomic.LoadUint64(&ws.MergePasses),
	}
}

// FailureRatio is failed / total pipelines, 0 when nothing ran.
func (ws *WorkloadStats) FailureRatio() float64 {
	ok := atomic.LoadUint64(&ws.PipelinesOK)
	failed := atomic.LoadUint64(&ws.PipelinesFailed)

	if ok+failed == 0 {
		return 0.0
	}
	return float64(failed) / float64(ok+failed)
}
