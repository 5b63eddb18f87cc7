package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"runsort/pkg/api"
	"runsort/pkg/common"
	"runsort/pkg/config"
	"runsort/pkg/core"
	"runsort/pkg/monitor"
	"runsort/pkg/storage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run holds the whole command so deferred cleanup (results db, progress sink)
// happens before main exits with the returned code.
func run(args []string) int {
	flags := pflag.NewFlagSet("runsort", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "config file (default: configs/runsort.yaml or runsort.yaml)")
	algorithms := flags.StringSliceP("algorithms", "a", nil, "algorithms to run: one_way,k_way,replacement,bucket")
	outputDir := flags.StringP("output-dir", "o", "", "directory for sorted outputs")
	memory := flags.StringP("memory", "m", "", "total memory budget, e.g. 64MiB")
	mode := flags.String("mode", "", "text or numeric")
	words := flags.BoolP("words", "w", false, "sort whitespace-separated words instead of lines")
	sequential := flags.Bool("sequential", false, "run algorithms one after another")
	parallel := flags.IntP("parallel", "p", 0, "max algorithms running at once")
	tempDir := flags.String("temp-dir", "", "directory for temporary runs")
	resultsDB := flags.String("results-db", "", "SQLite file to record results in")
	httpAddr := flags.String("http", "", "serve the progress dashboard on this address while sorting")
	list := flags.BoolP("list", "l", false, "list algorithms and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *list {
		for _, a := range core.Algorithms() {
			fmt.Printf("%-12s %s\n", a.ID, a.Name)
		}
		return 0
	}
	inputs := flags.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: runsort [flags] <input> [input...]")
		flags.PrintDefaults()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	// flags win over the file
	if flags.Changed("algorithms") {
		cfg.Coordinator.Algorithms = *algorithms
	}
	if flags.Changed("output-dir") {
		cfg.Coordinator.OutputDir = *outputDir
	}
	if flags.Changed("memory") {
		cfg.Sort.MemoryBudget = *memory
	}
	if flags.Changed("mode") {
		cfg.Sort.Mode = common.Mode(*mode)
	}
	if *words {
		cfg.Sort.Tokenize = common.TokenizeWords
	}
	if *sequential {
		cfg.Coordinator.Concurrent = false
	}
	if *parallel > 0 {
		cfg.Coordinator.MaxParallel = *parallel
	}
	if flags.Changed("temp-dir") {
		cfg.Temp.Dir = *tempDir
	}
	if flags.Changed("results-db") {
		cfg.Results.Path = *resultsDB
	}
	if flags.Changed("http") {
		cfg.Server.Addr = *httpAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	opts, err := core.OptionsFromConfig(cfg.Sort)
	if err != nil {
		log.Printf("Invalid sort options: %v", err)
		return 1
	}

	board := monitor.NewBoard()
	sink := monitor.NewAsyncSink(monitor.MultiSink{monitor.NewLogSink(10), board}, 256)
	defer sink.Close()
	stats := monitor.NewWorkloadStats()

	var store storage.Backend
	if cfg.Results.Path != "" {
		db, err := storage.NewSQLiteBackend(cfg.Results.Path)
		if err != nil {
			log.Printf("Failed to open results db: %v", err)
			return 1
		}
		defer db.Close()
		store = db
	}

	coord := &core.Coordinator{
		Options:     opts,
		TempDir:     cfg.Temp.Dir,
		Concurrent:  cfg.Coordinator.Concurrent,
		MaxParallel: cfg.Coordinator.MaxParallel,
		Sink:        sink,
		Stats:       stats,
		Store:       store,
	}

	if cfg.Server.Addr != "" {
		srv := api.NewServer(api.Options{Board: board, Stats: stats, Store: store})
		go func() {
			if err := srv.Start(cfg.Server.Addr); err != nil {
				log.Printf("[API] Server stopped: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("runsort: %s, budget %s, %d algorithm(s)\n",
		strings.Join(inputs, ", "), humanize.IBytes(uint64(opts.Budget)), len(cfg.Coordinator.Algorithms))
	sum, runErr := coord.Run(ctx, inputs, cfg.Coordinator.OutputDir, cfg.Coordinator.Algorithms)
	sink.Close()

	if sum != nil {
		printSummary(sum)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "runsort: %v\n", runErr)
		return 1
	}
	return 0
}

func printSummary(sum *core.Summary) {
	fmt.Println("---------------------------------------------------")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tRECORDS\tRUNS\tPASSES\tRUN BYTES\tTIME\tSTATUS")
	for _, r := range sum.Results {
		status := "ok"
		if !r.OK() {
			status = "FAILED: " + r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.Name, r.Records, r.Runs, r.MergePasses, humanize.IBytes(uint64(r.Bytes)), core.Elapsed(r.Duration), status)
	}
	tw.Flush()
	fmt.Println("---------------------------------------------------")
	if !sum.Consistent {
		fmt.Println("WARNING: algorithms produced different outputs")
	}
	for _, r := range sum.Results {
		if r.OK() {
			fmt.Printf("%s -> %s\n", r.Algorithm, r.Output)
		}
	}
}
