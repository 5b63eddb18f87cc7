package core

import (
	"runsort/pkg/common"
	"runsort/pkg/config"
)

// Options are the tunables shared by every strategy. One set of knobs drives
// all four algorithms.
type Options struct {
	Budget            int64 // bytes of resident records
	BatchSize         int
	MinBatchRecords   int
	MaxChunkRecords   int
	ReplacementBuffer int
	BucketCount       int
	MaxBucketDepth    int
	Ordering          common.Ordering
	Tokenize          common.Tokenize
}

// OptionsFromConfig builds Options from the sort section of a config.
func OptionsFromConfig(sc config.SortConfig) (Options, error) {
	budget, err := sc.Budget()
	if err != nil {
		return Options{}, err
	}
	ordering, err := common.NewOrdering(sc.Mode, sc.PrefixRunes)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Budget:            budget,
		BatchSize:         sc.BatchSize,
		MinBatchRecords:   sc.MinBatchRecords,
		MaxChunkRecords:   sc.MaxChunkRecords,
		ReplacementBuffer: sc.ReplacementBuffer,
		BucketCount:       sc.BucketCount,
		MaxBucketDepth:    sc.MaxBucketDepth,
		Ordering:          ordering,
		Tokenize:          sc.Tokenize,
	}.normalize(), nil
}

// DefaultOptions mirrors config.Default().
func DefaultOptions() Options {
	opts, err := OptionsFromConfig(config.Default().Sort)
	if err != nil {
		panic(err)
	}
	return opts
}

func (o Options) normalize() Options {
	if o.Budget <= 0 {
		o.Budget = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	if o.MinBatchRecords < 0 {
		o.MinBatchRecords = 0
	}
	if o.MinBatchRecords > o.BatchSize {
		o.MinBatchRecords = o.BatchSize
	}
	if o.ReplacementBuffer <= 0 {
		o.ReplacementBuffer = 1
	}
	if o.BucketCount < 2 {
		o.BucketCount = 2
	}
	if o.MaxBucketDepth < 0 {
		o.MaxBucketDepth = 0
	}
	if o.Ordering == nil {
		o.Ordering = common.NewTextOrdering(1)
	}
	if o.Tokenize == "" {
		o.Tokenize = common.TokenizeLines
	}
	return o
}
