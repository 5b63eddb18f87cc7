package storage

import (
	"bufio"
	"math"
	"os"
	"sync"

	"runsort/pkg/common"
	"runsort/pkg/storage/runfile"
)

// SpillFile is an append-only, unsorted bucket file. It remembers how much
// memory its records would need and the partition-key range it holds, so a
// caller can decide whether to sort it in memory or split it again without
// rescanning it.
type SpillFile struct {
	path      string
	file      *os.File
	buf       *bufio.Writer
	ordering  common.Ordering
	mu        sync.Mutex
	count     int64
	bytes     int64
	footprint int64
	minKey    float64
	maxKey    float64
	closed    bool
}

func CreateSpill(path string, ordering common.Ordering) (*SpillFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return nil, common.WrapIO("create spill", path, err)
	}
	return &SpillFile{
		path:     path,
		file:     f,
		buf:      bufio.NewWriterSize(f, runfile.BufferSize),
		ordering: ordering,
		minKey:   math.Inf(1),
		maxKey:   math.Inf(-1),
	}, nil
}

func (s *SpillFile) Append(r common.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.buf.WriteString(r.Line); err != nil {
		return common.WrapIO("append spill", s.path, err)
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return common.WrapIO("append spill", s.path, err)
	}
	k := s.ordering.PartitionKey(r)
	if k < s.minKey {
		s.minKey = k
	}
	if k > s.maxKey {
		s.maxKey = k
	}
	s.count++
	s.bytes += int64(len(r.Line)) + 1
	s.footprint += r.Size()
	return nil
}

func (s *SpillFile) Path() string { return s.path }

func (s *SpillFile) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Footprint is the memory estimate of loading every record at once.
func (s *SpillFile) Footprint() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.footprint
}

// KeyRange returns the smallest and largest partition keys appended.
// Both are infinite while the file is empty.
func (s *SpillFile) KeyRange() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minKey, s.maxKey
}

// Size is the number of bytes written so far.
func (s *SpillFile) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Sync flushes buffered records to the OS.
func (s *SpillFile) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return common.WrapIO("flush spill", s.path, s.buf.Flush())
}

// Open flushes pending writes and returns a reader over the file.
func (s *SpillFile) Open() (common.Stream, error) {
	if err := s.Sync(); err != nil {
		return nil, err
	}
	return runfile.Open(s.path, s.ordering)
}

func (s *SpillFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return common.WrapIO("flush spill", s.path, err)
	}
	return common.WrapIO("close spill", s.path, s.file.Close())
}
