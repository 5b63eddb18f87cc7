package memory

import (
	"slices"

	"runsort/pkg/common"
)

// ChunkBuffer accumulates records up to a byte budget and a record cap.
// The size is an estimate (see common.Record.Size), not exact heap usage.
type ChunkBuffer struct {
	items    []common.Record
	size     int64
	budget   int64
	maxCount int
}

// NewChunkBuffer returns a buffer bounded by budget bytes. maxCount <= 0
// means no record cap.
func NewChunkBuffer(budget int64, maxCount int) *ChunkBuffer {
	return &ChunkBuffer{budget: budget, maxCount: maxCount}
}

// Fits reports whether r can be added without crossing either limit.
// An empty buffer accepts any single record so oversized records still make
// progress.
func (b *ChunkBuffer) Fits(r common.Record) bool {
	if len(b.items) == 0 {
		return true
	}
	if b.maxCount > 0 && len(b.items) >= b.maxCount {
		return false
	}
	return b.size+r.Size() <= b.budget
}

func (b *ChunkBuffer) Put(r common.Record) {
	b.items = append(b.items, r)
	b.size += r.Size()
}

func (b *ChunkBuffer) Size() int64 {
	return b.size
}

func (b *ChunkBuffer) Count() int {
	return len(b.items)
}

// Sorted stable-sorts the buffered records in place and returns them. The
// slice stays owned by the buffer and is invalidated by Reset.
func (b *ChunkBuffer) Sorted(compare func(x, y common.Record) int) []common.Record {
	slices.SortStableFunc(b.items, compare)
	return b.items
}

// Reset empties the buffer but keeps its backing array for the next chunk.
func (b *ChunkBuffer) Reset() {
	clear(b.items)
	b.items = b.items[:0]
	b.size = 0
}

// Release drops the backing array.
func (b *ChunkBuffer) Release() {
	b.items = nil
	b.size = 0
}
