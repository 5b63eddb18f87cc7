package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"runsort/pkg/common"
)

type Config struct {
	Sort        SortConfig        `yaml:"sort"`
	Temp        TempConfig        `yaml:"temp"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Results     ResultsConfig     `yaml:"results"`
	Server      ServerConfig      `yaml:"server"`
}

type SortConfig struct {
	MemoryBudget      string          `yaml:"memory_budget"` // human size, e.g. "64MiB"
	BatchSize         int             `yaml:"batch_size"`
	MinBatchRecords   int             `yaml:"min_batch_records"`
	MaxChunkRecords   int             `yaml:"max_chunk_records"`
	ReplacementBuffer int             `yaml:"replacement_buffer"`
	BucketCount       int             `yaml:"bucket_count"`
	MaxBucketDepth    int             `yaml:"max_bucket_depth"`
	PrefixRunes       int             `yaml:"prefix_runes"`
	Mode              common.Mode     `yaml:"mode"`
	Tokenize          common.Tokenize `yaml:"tokenize"`
}

type TempConfig struct {
	Dir string `yaml:"dir"` // empty: os.TempDir()
}

type CoordinatorConfig struct {
	Algorithms  []string `yaml:"algorithms"`
	Concurrent  bool     `yaml:"concurrent"`
	MaxParallel int      `yaml:"max_parallel"`
	OutputDir   string   `yaml:"output_dir"`
}

type ResultsConfig struct {
	Path string `yaml:"path"` // SQLite file; empty disables history
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // dashboard listen address, empty disables it
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Sort: SortConfig{
			MemoryBudget:      "64MiB",
			BatchSize:         4096,
			MinBatchRecords:   1000,
			MaxChunkRecords:   500000,
			ReplacementBuffer: 100000,
			BucketCount:       26,
			MaxBucketDepth:    3,
			PrefixRunes:       2,
			Mode:              common.ModeText,
			Tokenize:          common.TokenizeLines,
		},
		Coordinator: CoordinatorConfig{
			Algorithms:  []string{"one_way", "k_way", "replacement", "bucket"},
			Concurrent:  true,
			MaxParallel: 4,
			OutputDir:   ".",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/runsort.yaml", "runsort.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, cfg.Validate()
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Sort.MemoryBudget == "" {
		cfg.Sort.MemoryBudget = d.Sort.MemoryBudget
	}
	if cfg.Sort.BatchSize <= 0 {
		cfg.Sort.BatchSize = d.Sort.BatchSize
	}
	if cfg.Sort.MinBatchRecords < 0 {
		cfg.Sort.MinBatchRecords = d.Sort.MinBatchRecords
	}
	if cfg.Sort.MaxChunkRecords <= 0 {
		cfg.Sort.MaxChunkRecords = d.Sort.MaxChunkRecords
	}
	if cfg.Sort.ReplacementBuffer <= 0 {
		cfg.Sort.ReplacementBuffer = d.Sort.ReplacementBuffer
	}
	if cfg.Sort.BucketCount <= 1 {
		cfg.Sort.BucketCount = d.Sort.BucketCount
	}
	if cfg.Sort.MaxBucketDepth < 0 {
		cfg.Sort.MaxBucketDepth = d.Sort.MaxBucketDepth
	}
	if cfg.Sort.PrefixRunes <= 0 {
		cfg.Sort.PrefixRunes = d.Sort.PrefixRunes
	}
	if cfg.Sort.Mode == "" {
		cfg.Sort.Mode = d.Sort.Mode
	}
	if cfg.Sort.Tokenize == "" {
		cfg.Sort.Tokenize = d.Sort.Tokenize
	}
	if len(cfg.Coordinator.Algorithms) == 0 {
		cfg.Coordinator.Algorithms = d.Coordinator.Algorithms
	}
	if cfg.Coordinator.MaxParallel <= 0 {
		cfg.Coordinator.MaxParallel = d.Coordinator.MaxParallel
	}
	if cfg.Coordinator.OutputDir == "" {
		cfg.Coordinator.OutputDir = d.Coordinator.OutputDir
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := c.Sort.Budget(); err != nil {
		return err
	}
	switch c.Sort.Mode {
	case common.ModeText, common.ModeNumeric:
	default:
		return fmt.Errorf("config: unknown sort.mode %q", c.Sort.Mode)
	}
	switch c.Sort.Tokenize {
	case common.TokenizeLines, common.TokenizeWords:
	default:
		return fmt.Errorf("config: unknown sort.tokenize %q", c.Sort.Tokenize)
	}
	return nil
}

// Budget parses MemoryBudget into bytes.
func (s SortConfig) Budget() (int64, error) {
	n, err := humanize.ParseBytes(s.MemoryBudget)
	if err != nil {
		return 0, fmt.Errorf("config: sort.memory_budget %q: %w", s.MemoryBudget, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("config: sort.memory_budget %q out of range", s.MemoryBudget)
	}
	return int64(n), nil
}
