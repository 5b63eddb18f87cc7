package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"runsort/pkg/common"
)

// TempSpace is one pipeline's private namespace for temporary run files.
// Names are <dir>/<label>-<id>-<kind>-<counter>.run; the random id keeps
// concurrently running pipelines apart even when they share a label.
type TempSpace struct {
	dir     string
	prefix  string
	counter atomic.Int64
	mu      sync.Mutex
	live    map[string]struct{}
}

func NewTempSpace(dir, label string) (*TempSpace, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, common.WrapIO("create temp dir", dir, err)
	}
	return &TempSpace{
		dir:    dir,
		prefix: fmt.Sprintf("%s-%s-", label, uuid.NewString()[:8]),
		live:   make(map[string]struct{}),
	}, nil
}

func (t *TempSpace) Dir() string { return t.dir }
func (t *TempSpace) Prefix() string { return t.prefix }

// NewPath reserves the next file name for kind ("chunk", "merge", ...).
// The file itself is not created.
func (t *TempSpace) NewPath(kind string) string {
	n := t.counter.Add(1)
	p := filepath.Join(t.dir, fmt.Sprintf("%s%s-%06d.run", t.prefix, kind, n))
	t.mu.Lock()
	t.live[p] = struct{}{}
	t.mu.Unlock()
	return p
}

// Release stops tracking path, e.g. after it was moved to the final output.
func (t *TempSpace) Release(path string) {
	t.mu.Lock()
	delete(t.live, path)
	t.mu.Unlock()
}

// Remove deletes path and stops tracking it.
func (t *TempSpace) Remove(path string) error {
	t.Release(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return common.WrapIO("remove temp", path, err)
	}
	return nil
}

// Live returns the number of tracked files that may still exist.
func (t *TempSpace) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Cleanup removes every tracked file plus anything else carrying the prefix.
// It returns how many files were deleted.
func (t *TempSpace) Cleanup() int {
	t.mu.Lock()
	paths := t.live
	t.live = make(map[string]struct{})
	t.mu.Unlock()

	if strays, err := filepath.Glob(filepath.Join(t.dir, t.prefix+"*")); err == nil {
		for _, p := range strays {
			paths[p] = struct{}{}
		}
	}

	removed := 0
	for p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case !os.IsNotExist(err):
			log.Printf("[TempSpace] Failed to remove %s: %v", p, err)
		}
	}
	return removed
}
