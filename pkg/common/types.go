package common

import "fmt"

// RecordOverhead approximates what holding one Record costs beyond its text
// bytes (string header plus the parsed numeric value).
const RecordOverhead = 24

// Mode selects how tokens are parsed and ordered.
type Mode string

const (
	ModeText    Mode = "text"
	ModeNumeric Mode = "numeric"
)

// Tokenize selects how input lines are split into records.
type Tokenize string

const (
	TokenizeLines Tokenize = "lines"
	TokenizeWords Tokenize = "words"
)

// Record is the unit the engine moves between sources, buffers, run files and
// merge queues. Line is written back verbatim; Num is only meaningful in
// numeric mode.
type Record struct {
	Line string
	Num  float64
}

// Size is the in-memory size estimate charged against a memory budget.
func (r Record) Size() int64 {
	return int64(len(r.Line)) + RecordOverhead
}

// String 用于调试输出
func (r *Record) String() string {
	return fmt.Sprintf("Record{Line: %q, Num: %g}", r.Line, r.Num)
}

// Stream is a forward-only sequence of records. Next returns false at the end
// or on error; Err tells them apart. Offset reports the bytes consumed so far
// and drives progress reporting.
type Stream interface {
	Next() bool
	Record() Record
	Err() error
	Offset() int64
	Close()
}

// Input can be opened more than once, which multi-pass strategies need.
type Input interface {
	Open() (Stream, error)
	Size() int64
}
