package runfile

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"runsort/pkg/common"
)

// Iterator streams the records of a run file in order.
type Iterator struct {
	file     *os.File
	reader   *bufio.Reader
	ordering common.Ordering
	path     string
	cur      common.Record
	offset   int64
	err      error
	done     bool
}

func Open(filename string, ordering common.Ordering) (*Iterator, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, common.WrapIO("open run", filename, err)
	}
	return &Iterator{
		file:     f,
		reader:   bufio.NewReaderSize(f, BufferSize),
		ordering: ordering,
		path:     filename,
	}, nil
}

// Next advances to the next record. It returns false at the end of the run
// or on error; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	line, err := it.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		it.err = common.WrapIO("read run", it.path, err)
		it.done = true
		return false
	}
	if line == "" && err != nil {
		it.done = true
		return false
	}
	it.offset += int64(len(line))
	line = strings.TrimSuffix(line, "\n")
	rec, perr := it.ordering.Parse(line)
	if perr != nil {
		it.err = common.WrapIO("parse run", it.path, perr)
		it.done = true
		return false
	}
	it.cur = rec
	return true
}

func (it *Iterator) Record() common.Record { return it.cur }

func (it *Iterator) Err() error { return it.err }

func (it *Iterator) Path() string { return it.path }

// Offset is the number of bytes consumed so far.
func (it *Iterator) Offset() int64 { return it.offset }

func (it *Iterator) Close() {
	it.file.Close()
}
