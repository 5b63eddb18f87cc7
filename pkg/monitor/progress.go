package monitor

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressSink receives progress from running pipelines. Report must not
// block the caller and must be safe for concurrent use.
type ProgressSink interface {
	Report(pipelineID string, percent int, message string)
}

// Report is one progress update.
type Report struct {
	PipelineID string    `json:"pipeline_id"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

type NopSink struct{}

func (NopSink) Report(string, int, string) {}

// MultiSink forwards every report to each sink in order.
type MultiSink []ProgressSink

func (m MultiSink) Report(id string, percent int, message string) {
	for _, s := range m {
		s.Report(id, percent, message)
	}
}

// LogSink writes reports through the standard logger. Plain percent updates
// are only logged every Step points; reports with a message always are.
type LogSink struct {
	Step int

	mu   sync.Mutex
	last map[string]int
}

func NewLogSink(step int) *LogSink {
	if step <= 0 {
		step = 10
	}
	return &LogSink{Step: step, last: make(map[string]int)}
}

func (l *LogSink) Report(id string, percent int, message string) {
	l.mu.Lock()
	prev, seen := l.last[id]
	if message == "" && seen && percent < prev+l.Step && percent != 100 {
		l.mu.Unlock()
		return
	}
	l.last[id] = percent
	l.mu.Unlock()

	if message == "" {
		log.Printf("[Progress] %s %3d%%", id, percent)
		return
	}
	log.Printf("[Progress] %s %3d%% %s", id, percent, message)
}

// Board keeps the latest report of every pipeline for the dashboard.
type Board struct {
	mu     sync.RWMutex
	latest map[string]Report
}

func NewBoard() *Board {
	return &Board{latest: make(map[string]Report)}
}

func (b *Board) Report(id string, percent int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := Report{PipelineID: id, Percent: percent, Message: message, At: time.Now()}
	if message == "" {
		// keep the last status text visible next to the newer percentage
		r.Message = b.latest[id].Message
	}
	b.latest[id] = r
}

// Snapshot returns the latest reports ordered by pipeline ID.
func (b *Board) Snapshot() []Report {
	b.mu.RLock()
	out := make([]Report, 0, len(b.latest))
	for _, r := range b.latest {
		out = append(out, r)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PipelineID < out[j].PipelineID })
	return out
}

func (b *Board) Reset() {
	b.mu.Lock()
	b.latest = make(map[string]Report)
	b.mu.Unlock()
}

// AsyncSink decouples pipelines from a slower sink. Reports go through a
// bounded channel and are dropped, not queued, when it is full.
type AsyncSink struct {
	next    ProgressSink
	ch      chan Report
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func NewAsyncSink(next ProgressSink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncSink{
		next:    next,
		ch:      make(chan Report, buffer),
		closeCh: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.backgroundDeliver()
	return a
}

func (a *AsyncSink) Report(id string, percent int, message string) {
	select {
	case <-a.closeCh:
		a.dropped.Add(1)
		return
	default:
	}
	select {
	case a.ch <- Report{PipelineID: id, Percent: percent, Message: message}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped is the number of reports discarded so far.
func (a *AsyncSink) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *AsyncSink) backgroundDeliver() {
	defer a.wg.Done()
	for {
		select {
		case r := <-a.ch:
			a.next.Report(r.PipelineID, r.Percent, r.Message)
		case <-a.closeCh:
			for {
				select {
				case r := <-a.ch:
					a.next.Report(r.PipelineID, r.Percent, r.Message)
				default:
					return
				}
			}
		}
	}
}

// Close delivers whatever is still buffered and stops the goroutine.
func (a *AsyncSink) Close() {
	a.once.Do(func() { close(a.closeCh) })
	a.wg.Wait()
}
