package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"runsort/pkg/core"
	"runsort/pkg/monitor"
	"runsort/pkg/storage"
)

// Options wires the server to the rest of the process. Every field except
// Board may be nil; the matching endpoints then answer 503.
type Options struct {
	Board       *monitor.Board
	Stats       *monitor.WorkloadStats
	Store       storage.Backend
	Coordinator *core.Coordinator
	OutputDir   string
}

type Server struct {
	opts    Options
	mux     *http.ServeMux
	running atomic.Bool
}

func NewServer(opts Options) *Server {
	if opts.Board == nil {
		opts.Board = monitor.NewBoard()
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/progress", s.handleProgress)
	s.mux.HandleFunc("/api/results", s.handleResults)
	s.mux.HandleFunc("/api/algorithms", s.handleAlgorithms)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/sort", s.handleSort)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	log.Printf("[API] Dashboard listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.opts.Board.Snapshot())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		http.Error(w, "Results history disabled", http.StatusServiceUnavailable)
		return
	}

	var (
		rows []storage.ResultRecord
		err  error
	)
	if session := r.URL.Query().Get("session"); session != "" {
		rows, err = s.opts.Store.Session(session)
	} else {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit <= 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
		}
		rows, err = s.opts.Store.Recent(limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"count":   len(rows),
		"results": rows,
	})
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, core.Algorithms())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		http.Error(w, "Stats disabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"workload":      s.opts.Stats.Snapshot(),
		"failure_ratio": s.opts.Stats.FailureRatio(),
		"running":       s.running.Load(),
	})
}

// handleSort starts a coordinated sort in the background. Only one session
// runs at a time.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Coordinator == nil {
		http.Error(w, "Sorting disabled", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Inputs     []string `json:"inputs"`
		Algorithms []string `json:"algorithms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Inputs) == 0 {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	for _, id := range req.Algorithms {
		if _, err := core.LookupAlgorithm(id); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, "A sort is already running", http.StatusConflict)
		return
	}

	s.opts.Board.Reset()
	go func() {
		defer s.running.Store(false)
		sum, err := s.opts.Coordinator.Run(context.Background(), req.Inputs, s.opts.OutputDir, req.Algorithms)
		if err != nil {
			log.Printf("[API] Sort finished with errors: %v", err)
		}
		if sum != nil {
			log.Printf("[API] Session %s finished, consistent=%v", sum.Session, sum.Consistent)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Sort started"))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.running.Load() {
		http.Error(w, "A sort is running", http.StatusConflict)
		return
	}

	s.opts.Board.Reset()
	if s.opts.Store != nil {
		if err := s.opts.Store.Truncate(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Reset Successful"))
}

// handleMetrics writes the Prometheus text exposition format by hand.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}

	if s.opts.Stats != nil {
		snap := s.opts.Stats.Snapshot()
		metric("runsort_pipelines_ok_total", "counter", "Pipelines that finished successfully.", snap.PipelinesOK)
		metric("runsort_pipelines_failed_total", "counter", "Pipelines that failed.", snap.PipelinesFailed)
		metric("runsort_records_total", "counter", "Records read by all pipelines.", snap.Records)
		metric("runsort_malformed_total", "counter", "Records skipped as malformed.", snap.Malformed)
		metric("runsort_runs_total", "counter", "Sorted runs generated.", snap.Runs)
		metric("runsort_merge_passes_total", "counter", "Merge passes performed.", snap.MergePasses)
		metric("runsort_failure_ratio", "gauge", "Share of pipelines that failed.", s.opts.Stats.FailureRatio())
	}

	b.WriteString("# HELP runsort_pipeline_progress Latest reported progress per pipeline.\n")
	b.WriteString("# TYPE runsort_pipeline_progress gauge\n")
	for _, rep := range s.opts.Board.Snapshot() {
		fmt.Fprintf(&b, "runsort_pipeline_progress{pipeline=%q} %d\n", rep.PipelineID, rep.Percent)
	}

	running := 0
	if s.running.Load() {
		running = 1
	}
	metric("runsort_session_running", "gauge", "Whether a dashboard-started sort is running.", running)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(b.String()))
}
