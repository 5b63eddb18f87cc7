// Package runfile reads and writes sorted runs: one record per line.
package runfile

import (
	"bufio"
	"os"

	"runsort/pkg/common"
)

// BufferSize is the bufio size used for each open run, reader or writer.
const BufferSize = 64 * 1024

type Builder struct {
	file   *os.File
	writer *bufio.Writer
	path   string
	count  int64
	bytes  int64
	closed bool
}

func NewBuilder(filename string) (*Builder, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, common.WrapIO("create run", filename, err)
	}
	return &Builder{
		file:   f,
		writer: bufio.NewWriterSize(f, BufferSize),
		path:   filename,
	}, nil
}

// Add appends r. Callers are responsible for adding records in order.
func (b *Builder) Add(r common.Record) error {
	if _, err := b.writer.WriteString(r.Line); err != nil {
		return common.WrapIO("write run", b.path, err)
	}
	if err := b.writer.WriteByte('\n'); err != nil {
		return common.WrapIO("write run", b.path, err)
	}
	b.count++
	b.bytes += int64(len(r.Line)) + 1
	return nil
}

func (b *Builder) Path() string { return b.path }
func (b *Builder) Count() int64 { return b.count }
func (b *Builder) Bytes() int64 { return b.bytes }

// Close flushes and closes the file. Calling it twice is a no-op.
func (b *Builder) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.writer.Flush(); err != nil {
		b.file.Close()
		return common.WrapIO("flush run", b.path, err)
	}
	if err := b.file.Close(); err != nil {
		return common.WrapIO("close run", b.path, err)
	}
	return nil
}

// Abort closes the file and removes it.
func (b *Builder) Abort() {
	if !b.closed {
		b.closed = true
		b.file.Close()
	}
	os.Remove(b.path)
}
