package main

import (
	"log"

	"github.com/spf13/pflag"

	"runsort/pkg/api"
	"runsort/pkg/config"
	"runsort/pkg/core"
	"runsort/pkg/monitor"
	"runsort/pkg/storage"
)

// main 启动结果看板: 可以通过 HTTP 发起排序并查看进度与历史结果。
func main() {
	configPath := pflag.StringP("config", "c", "", "config file")
	addr := pflag.String("addr", "", "listen address (overrides server.addr)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Results.Path == "" {
		cfg.Results.Path = "runsort.db"
	}

	opts, err := core.OptionsFromConfig(cfg.Sort)
	if err != nil {
		log.Fatalf("Invalid sort options: %v", err)
	}
	store, err := storage.NewSQLiteBackend(cfg.Results.Path)
	if err != nil {
		log.Fatalf("Failed to open results db: %v", err)
	}
	defer store.Close()

	board := monitor.NewBoard()
	sink := monitor.NewAsyncSink(monitor.MultiSink{monitor.NewLogSink(25), board}, 256)
	defer sink.Close()
	stats := monitor.NewWorkloadStats()

	coord := &core.Coordinator{
		Options:     opts,
		TempDir:     cfg.Temp.Dir,
		Concurrent:  cfg.Coordinator.Concurrent,
		MaxParallel: cfg.Coordinator.MaxParallel,
		Sink:        sink,
		Stats:       stats,
		Store:       store,
	}
	srv := api.NewServer(api.Options{
		Board:       board,
		Stats:       stats,
		Store:       store,
		Coordinator: coord,
		OutputDir:   cfg.Coordinator.OutputDir,
	})
	if err := srv.Start(cfg.Server.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
