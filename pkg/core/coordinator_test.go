package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"runsort/pkg/common"
	"runsort/pkg/monitor"
	"runsort/pkg/storage"
)

func TestCoordinatorAgreesAcrossAlgorithms(t *testing.T) {
	for _, concurrent := range []bool{true, false} {
		dir := t.TempDir()
		words := randomWords(2500, 17)
		input := writeInput(t, dir, "words.txt", words)
		outDir := filepath.Join(dir, "out")
		board := monitor.NewBoard()
		stats := monitor.NewWorkloadStats()

		c := &Coordinator{
			Options:     smallOptions(16 << 10),
			TempDir:     filepath.Join(dir, "tmp"),
			Concurrent:  concurrent,
			MaxParallel: 2,
			Sink:        board,
			Stats:       stats,
		}
		sum, err := c.Run(context.Background(), []string{input}, outDir, nil)
		if err != nil {
			t.Fatalf("concurrent=%v: run: %v", concurrent, err)
		}
		if !sum.Consistent || len(sum.Results) != 4 {
			t.Fatalf("concurrent=%v: unexpected summary %+v", concurrent, sum)
		}

		want := expectedOrder(words, c.Options.Ordering)
		for _, res := range sum.Results {
			if res.Output != OutputPath(outDir, input, res.Algorithm) {
				t.Errorf("%s: output %s", res.Algorithm, res.Output)
			}
			if diff := cmp.Diff(want, readLines(t, res.Output)); diff != "" {
				t.Fatalf("%s: (-want +got):\n%s", res.Algorithm, diff)
			}
			if res.Fingerprint != sum.Results[0].Fingerprint {
				t.Fatalf("%s: fingerprint differs", res.Algorithm)
			}
		}
		if len(board.Snapshot()) != 4 {
			t.Errorf("expected a board entry per algorithm, got %d", len(board.Snapshot()))
		}
		if snap := stats.Snapshot(); snap.PipelinesOK != 4 || snap.PipelinesFailed != 0 {
			t.Errorf("unexpected workload stats %+v", snap)
		}
		assertNoTempFiles(t, filepath.Join(dir, "tmp"))
	}
}

func TestCoordinatorIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "words.txt", randomWords(1200, 23))
	outDir := filepath.Join(dir, "out")

	// a non-empty directory where k_way wants to put its output
	blocked := OutputPath(outDir, input, "k_way")
	if err := os.MkdirAll(blocked, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(blocked, "keep"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewSQLiteBackend(filepath.Join(dir, "results.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	c := &Coordinator{
		Options:    smallOptions(8 << 10),
		TempDir:    filepath.Join(dir, "tmp"),
		Concurrent: true,
		Store:      store,
	}
	sum, err := c.Run(context.Background(), []string{input}, outDir, []string{"one_way", "k_way", "replacement", "bucket", "k_way"})
	if err == nil {
		t.Fatal("expected the k_way failure to be reported")
	}
	if !errors.Is(err, common.ErrIOFailure) {
		t.Errorf("expected ErrIOFailure in %v", err)
	}
	if len(sum.Results) != 4 {
		t.Fatalf("duplicate ids should be dropped, got %d results", len(sum.Results))
	}
	for _, res := range sum.Results {
		if res.Algorithm == "k_way" {
			if res.OK() {
				t.Fatal("k_way should have failed")
			}
			continue
		}
		if !res.OK() {
			t.Fatalf("%s failed alongside k_way: %v", res.Algorithm, res.Err)
		}
	}
	if !sum.Consistent {
		t.Error("surviving outputs should agree")
	}
	assertNoTempFiles(t, filepath.Join(dir, "tmp"))

	rows, err := store.Session(sum.Session)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	failed := 0
	for _, r := range rows {
		if r.Status == "failed" {
			failed++
		}
	}
	if len(rows) != 4 || failed != 1 {
		t.Fatalf("expected 4 rows with one failure, got %d rows, %d failed", len(rows), failed)
	}
}

func TestCoordinatorRejectsUnknownAlgorithm(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.txt", []string{"a"})
	c := &Coordinator{Options: smallOptions(1 << 10)}

	_, err := c.Run(context.Background(), []string{input}, dir, []string{"k_way", "bogo"})
	if !errors.Is(err, common.ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
	if _, err := os.Stat(OutputPath(dir, input, "k_way")); !os.IsNotExist(err) {
		t.Fatal("nothing should run when an id is unknown")
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	ordering := common.NewTextOrdering(1)

	sorted := writeInput(t, dir, "sorted", []string{"Apple", "apple", "banana"})
	shuffled := writeInput(t, dir, "shuffled", []string{"banana", "apple", "Apple"})

	a, err := Verify(sorted, ordering)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !a.Sorted || a.Records != 3 || a.Disorder != 0 {
		t.Fatalf("unexpected verification %+v", a)
	}

	b, err := Verify(shuffled, ordering)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if b.Sorted || b.Disorder != 2 {
		t.Fatalf("expected disorder at record 2, got %+v", b)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Fatal("fingerprint must not depend on order")
	}

	dup := writeInput(t, dir, "dup", []string{"Apple", "Apple", "banana"})
	c, _ := Verify(dup, ordering)
	if c.Fingerprint == a.Fingerprint {
		t.Fatal("different multisets must not share a fingerprint")
	}

	if _, err := Verify(filepath.Join(dir, "nope"), ordering); !errors.Is(err, common.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure, got %v", err)
	}
}
