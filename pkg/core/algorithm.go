package core

import (
	"fmt"

	"runsort/pkg/common"
)

// Algorithm pairs a run generator with a merger.
type Algorithm struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	generator func(ws *Workspace) Generator
	merger    func(ws *Workspace) Merger
}

var registry = []Algorithm{
	{
		ID:        "one_way",
		Name:      "One-Way Merge Sort",
		generator: func(ws *Workspace) Generator { return NewChunkGenerator(ws) },
		merger:    func(ws *Workspace) Merger { return NewPairwiseMerger(ws) },
	},
	{
		ID:        "k_way",
		Name:      "K-Way Merge Sort",
		generator: func(ws *Workspace) Generator { return NewChunkGenerator(ws) },
		merger:    func(ws *Workspace) Merger { return NewKWayMerger(ws) },
	},
	{
		ID:        "replacement",
		Name:      "Replacement Selection Sort",
		generator: func(ws *Workspace) Generator { return NewReplacementGenerator(ws) },
		merger:    func(ws *Workspace) Merger { return NewKWayMerger(ws) },
	},
	{
		ID:        "bucket",
		Name:      "Bucket Sort",
		generator: func(ws *Workspace) Generator { return NewBucketGenerator(ws) },
		merger:    func(ws *Workspace) Merger { return NewConcatMerger(ws) },
	},
}

// Algorithms lists every registered algorithm in display order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(registry))
	copy(out, registry)
	return out
}

func LookupAlgorithm(id string) (Algorithm, error) {
	for _, a := range registry {
		if a.ID == id {
			return a, nil
		}
	}
	return Algorithm{}, fmt.Errorf("%w: %q", common.ErrUnknownAlgorithm, id)
}

func (a Algorithm) NewGenerator(ws *Workspace) Generator { return a.generator(ws) }
func (a Algorithm) NewMerger(ws *Workspace) Merger { return a.merger(ws) }
