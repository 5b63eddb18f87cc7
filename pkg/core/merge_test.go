package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"runsort/pkg/common"
)

func makeRuns(t *testing.T, ws *Workspace, groups ...[]string) RunSet {
	t.Helper()
	var rs RunSet
	for _, g := range groups {
		recs := make([]common.Record, len(g))
		for i, l := range g {
			r, err := ws.Opts.Ordering.Parse(l)
			if err != nil {
				t.Fatalf("parse %q: %v", l, err)
			}
			recs[i] = r
		}
		run, err := ws.writeRun("fixture", recs)
		if err != nil {
			t.Fatalf("write run: %v", err)
		}
		rs.Runs = append(rs.Runs, run)
	}
	return rs
}

func TestKWayMergeWithEmptyRun(t *testing.T) {
	ws := newTestWorkspace(t, smallOptions(1<<10))
	rs := makeRuns(t, ws, []string{"b", "d"}, nil, []string{"a", "c", "e"})
	out := filepath.Join(t.TempDir(), "out")

	if err := NewKWayMerger(ws).Merge(context.Background(), rs, out); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, readLines(t, out)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if ws.Temp.Live() != 0 {
		t.Fatalf("runs not consumed, %d still tracked", ws.Temp.Live())
	}
	if _, err := os.Stat(out + ".partial"); !os.IsNotExist(err) {
		t.Fatal("partial output left behind")
	}
}

func TestMergeTiesFavourEarlierRuns(t *testing.T) {
	for _, tc := range []struct {
		name   string
		merger func(ws *Workspace) Merger
	}{
		{"pairwise", func(ws *Workspace) Merger { return NewPairwiseMerger(ws) }},
		{"kway", func(ws *Workspace) Merger { return NewKWayMerger(ws) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ws := newTestWorkspace(t, smallOptions(1<<10))
			rs := makeRuns(t, ws, []string{"APPLE", "kiwi"}, []string{"apple", "Kiwi"}, []string{"Apple"})
			out := filepath.Join(t.TempDir(), "out")
			if err := tc.merger(ws).Merge(context.Background(), rs, out); err != nil {
				t.Fatalf("merge: %v", err)
			}
			want := []string{"APPLE", "apple", "Apple", "kiwi", "Kiwi"}
			if diff := cmp.Diff(want, readLines(t, out)); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestPairwiseMergeCountsStages(t *testing.T) {
	cases := []struct {
		runs   int
		stages int
	}{
		{2, 1}, {3, 2}, {4, 2}, {5, 3}, {8, 3}, {9, 4},
	}
	for _, tc := range cases {
		ws := newTestWorkspace(t, smallOptions(1<<10))
		groups := make([][]string, tc.runs)
		var want []string
		for i := range groups {
			v := string(rune('a' + i))
			groups[i] = []string{v}
			want = append(want, v)
		}
		// reverse run order so merging has to reorder
		for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
			groups[i], groups[j] = groups[j], groups[i]
		}
		rs := makeRuns(t, ws, groups...)
		out := filepath.Join(t.TempDir(), "out")

		if err := NewPairwiseMerger(ws).Merge(context.Background(), rs, out); err != nil {
			t.Fatalf("%d runs: merge: %v", tc.runs, err)
		}
		if diff := cmp.Diff(want, readLines(t, out)); diff != "" {
			t.Fatalf("%d runs: (-want +got):\n%s", tc.runs, diff)
		}
		if got := ws.Stats.MergePasses.Load(); got != int64(tc.stages) {
			t.Fatalf("%d runs: stages = %d, want %d", tc.runs, got, tc.stages)
		}
		if ws.Temp.Live() != 0 {
			t.Fatalf("%d runs: %d intermediate files still tracked", tc.runs, ws.Temp.Live())
		}
	}
}

func TestMergeTrivialRunSets(t *testing.T) {
	ws := newTestWorkspace(t, smallOptions(1<<10))
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty")
	if err := NewPairwiseMerger(ws).Merge(context.Background(), RunSet{}, empty); err != nil {
		t.Fatalf("merge empty: %v", err)
	}
	if st, err := os.Stat(empty); err != nil || st.Size() != 0 {
		t.Fatalf("expected empty output file, got %v, %v", st, err)
	}

	rs := makeRuns(t, ws, []string{"x", "y"})
	single := filepath.Join(dir, "single")
	if err := NewKWayMerger(ws).Merge(context.Background(), rs, single); err != nil {
		t.Fatalf("merge single: %v", err)
	}
	if diff := cmp.Diff([]string{"x", "y"}, readLines(t, single)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if _, err := os.Stat(rs.Runs[0].Path); !os.IsNotExist(err) {
		t.Fatal("single run should have been moved, not copied")
	}
}

func TestConcatMergerFallsBackForUnpartitionedRuns(t *testing.T) {
	ws := newTestWorkspace(t, smallOptions(1<<10))
	rs := makeRuns(t, ws, []string{"m", "z"}, []string{"a", "n"})
	out := filepath.Join(t.TempDir(), "out")

	if err := NewConcatMerger(ws).Merge(context.Background(), rs, out); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "m", "n", "z"}, readLines(t, out)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	rs = makeRuns(t, ws, []string{"a", "b"}, []string{"c"}, []string{"d", "e"})
	rs.Partitioned = true
	if err := NewConcatMerger(ws).Merge(context.Background(), rs, out); err != nil {
		t.Fatalf("concat: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, readLines(t, out)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestMergeMissingRunIsIOFailure(t *testing.T) {
	ws := newTestWorkspace(t, smallOptions(1<<10))
	rs := makeRuns(t, ws, []string{"a"}, []string{"b"}, []string{"c"})
	os.Remove(rs.Runs[1].Path)
	out := filepath.Join(t.TempDir(), "out")

	err := NewKWayMerger(ws).Merge(context.Background(), rs, out)
	if !errors.Is(err, common.ErrIOFailure) {
		t.Fatalf("expected ErrIOFailure, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("no output expected after a failed merge")
	}
	if _, err := os.Stat(out + ".partial"); !os.IsNotExist(err) {
		t.Fatal("partial output left behind")
	}
}

func TestMergeHonoursCancellation(t *testing.T) {
	ws := newTestWorkspace(t, smallOptions(1<<10))
	rs := makeRuns(t, ws, []string{"a", "c"}, []string{"b", "d"}, []string{"e"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPairwiseMerger(ws).Merge(ctx, rs, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type lineCollector []string

func (c *lineCollector) Add(r common.Record) error {
	*c = append(*c, r.Line)
	return nil
}

func TestMerge2StopsMidPair(t *testing.T) {
	ws := newTestWorkspace(t, smallOptions(1<<10))
	rs := makeRuns(t, ws, []string{"a", "c", "e"}, []string{"b", "d"})

	var got lineCollector
	if err := merge2(context.Background(), rs.Runs[0], rs.Runs[1], ws.Opts.Ordering, &got); err != nil {
		t.Fatalf("merge2: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, []string(got)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var partial lineCollector
	err := merge2(ctx, rs.Runs[0], rs.Runs[1], ws.Opts.Ordering, &partial)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(partial) != 0 {
		t.Fatalf("wrote %d records after cancellation", len(partial))
	}
}
