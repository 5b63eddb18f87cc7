package storage

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"runsort/pkg/common"
	"runsort/pkg/storage/runfile"
)

// FileInput reads records from one or more files, in order, as if they were
// concatenated.
type FileInput struct {
	Paths    []string
	Ordering common.Ordering
	Tokenize common.Tokenize

	// OnMalformed is called for every token the ordering rejects during the
	// first pass. The token is skipped either way.
	OnMalformed func(token string, err error)

	size   int64
	opened atomic.Int32
}

// NewFileInput stats every path up front so a missing input fails before any
// work starts.
func NewFileInput(paths []string, ordering common.Ordering, tokenize common.Tokenize) (*FileInput, error) {
	in := &FileInput{Paths: paths, Ordering: ordering, Tokenize: tokenize}
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, common.WrapIO("stat input", p, err)
		}
		if st.IsDir() {
			return nil, common.WrapIO("stat input", p, errors.New("is a directory"))
		}
		in.size += st.Size()
	}
	return in, nil
}

func (in *FileInput) Size() int64 { return in.size }

func (in *FileInput) Open() (common.Stream, error) {
	s := &Source{in: in, first: in.opened.Add(1) == 1}
	if err := s.openNext(); err != nil {
		return nil, err
	}
	return s, nil
}

// Source is the Stream returned by FileInput.Open.
type Source struct {
	in      *FileInput
	idx     int
	file    *os.File
	reader  *bufio.Reader
	path    string
	pending []string
	cur     common.Record
	offset  int64
	err     error
	done    bool
	first   bool
}

func (s *Source) openNext() error {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if s.idx >= len(s.in.Paths) {
		s.done = true
		return nil
	}
	s.path = s.in.Paths[s.idx]
	s.idx++
	f, err := os.Open(s.path)
	if err != nil {
		return common.WrapIO("open input", s.path, err)
	}
	s.file = f
	if s.reader == nil {
		s.reader = bufio.NewReaderSize(f, runfile.BufferSize)
	} else {
		s.reader.Reset(f)
	}
	return nil
}

func (s *Source) Next() bool {
	for !s.done {
		tok, ok := s.nextToken()
		if !ok {
			continue
		}
		rec, err := s.in.Ordering.Parse(tok)
		if err != nil {
			if s.first && s.in.OnMalformed != nil {
				s.in.OnMalformed(tok, err)
			}
			continue
		}
		s.cur = rec
		return true
	}
	return false
}

// nextToken returns the next non-blank token. ok is false when a file ended,
// an error occurred, or the line held nothing usable; Next loops on done.
func (s *Source) nextToken() (string, bool) {
	if len(s.pending) > 0 {
		tok := s.pending[0]
		s.pending = s.pending[1:]
		return tok, true
	}
	line, err := s.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = common.WrapIO("read input", s.path, err)
		s.done = true
		return "", false
	}
	s.offset += int64(len(line))
	if err != nil && line == "" {
		if oerr := s.openNext(); oerr != nil {
			s.err = oerr
			s.done = true
		}
		return "", false
	}
	line = strings.TrimRight(line, "\r\n")

	if s.in.Tokenize == common.TokenizeWords {
		s.pending = strings.Fields(line)
		return "", false
	}
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}

func (s *Source) Record() common.Record { return s.cur }

func (s *Source) Err() error { return s.err }

func (s *Source) Offset() int64 { return s.offset }

func (s *Source) Close() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.done = true
}
