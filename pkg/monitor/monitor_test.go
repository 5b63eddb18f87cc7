package monitor

import (
	"fmt"
	"sync"
	"testing"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Report
}

func (b *blockingSink) Report(id string, percent int, message string) {
	<-b.release
	b.mu.Lock()
	b.got = append(b.got, Report{PipelineID: id, Percent: percent, Message: message})
	b.mu.Unlock()
}

func TestAsyncSinkDeliversOnClose(t *testing.T) {
	board := NewBoard()
	a := NewAsyncSink(board, 16)
	a.Report("k_way", 10, "splitting")
	a.Report("k_way", 60, "")
	a.Report("bucket", 100, "done")
	a.Close()

	snap := board.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 pipelines on board, got %d", len(snap))
	}
	if snap[0].PipelineID != "bucket" || snap[1].PipelineID != "k_way" {
		t.Fatalf("snapshot not ordered by id: %+v", snap)
	}
	if snap[1].Percent != 60 || snap[1].Message != "splitting" {
		t.Fatalf("expected last percent with sticky message, got %+v", snap[1])
	}

	// reports after close are dropped, never panic
	a.Report("k_way", 70, "")
	if a.Dropped() != 1 {
		t.Fatalf("expected 1 dropped report after close, got %d", a.Dropped())
	}
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	slow := &blockingSink{release: make(chan struct{})}
	a := NewAsyncSink(slow, 1)
	for i := 0; i < 3; i++ {
		a.Report("one_way", i, "")
	}
	if a.Dropped() == 0 {
		t.Fatal("expected at least one report to be dropped")
	}
	close(slow.release)
	a.Close()

	slow.mu.Lock()
	delivered := len(slow.got)
	slow.mu.Unlock()
	if uint64(delivered)+a.Dropped() != 3 {
		t.Fatalf("delivered %d + dropped %d != 3", delivered, a.Dropped())
	}
}

func TestBoardConcurrentReports(t *testing.T) {
	board := NewBoard()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			id := fmt.Sprintf("pipe-%d", p)
			for pct := 0; pct <= 100; pct++ {
				board.Report(id, pct, "")
			}
		}(p)
	}
	wg.Wait()

	snap := board.Snapshot()
	if len(snap) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(snap))
	}
	for _, r := range snap {
		if r.Percent != 100 {
			t.Fatalf("expected final percent 100 for %s, got %d", r.PipelineID, r.Percent)
		}
	}
	board.Reset()
	if len(board.Snapshot()) != 0 {
		t.Fatal("expected empty board after reset")
	}
}

func TestMultiSinkAndLogSink(t *testing.T) {
	b1, b2 := NewBoard(), NewBoard()
	m := MultiSink{b1, b2, NewLogSink(25), NopSink{}}
	m.Report("replacement", 42, "series 3")
	if len(b1.Snapshot()) != 1 || len(b2.Snapshot()) != 1 {
		t.Fatal("expected both boards to receive the report")
	}
}

func TestWorkloadStats(t *testing.T) {
	ws := NewWorkloadStats()
	if ws.FailureRatio() != 0 {
		t.Fatal("expected zero ratio with no pipelines")
	}
	ps := NewPipelineStats()
	ps.AddRecords(10)
	ps.RecordMalformed()
	ps.RecordRun(100)
	ps.RecordRun(50)
	ps.SetMergePasses(2)

	ws.RecordPipeline(true, ps)
	ws.RecordPipeline(false, nil)

	snap := ws.Snapshot()
	if snap.Records != 10 || snap.Malformed != 1 || snap.Runs != 2 || snap.MergePasses != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if ws.FailureRatio() != 0.5 {
		t.Fatalf("expected ratio 0.5, got %v", ws.FailureRatio())
	}
	if ps.RunBytes.Load() != 150 {
		t.Fatalf("expected 150 run bytes, got %d", ps.RunBytes.Load())
	}
}
