package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"

	"runsort/pkg/gen"
)

func main() {
	out := pflag.StringP("out", "o", "input.txt", "file to write")
	kind := pflag.StringP("kind", "k", "words", "words or numbers")
	lines := pflag.IntP("lines", "n", 10000, "number of lines")
	perLine := pflag.Int("per-line", 1, "words per line (words only)")
	seed := pflag.Uint64("seed", 0, "random seed (0: time based)")
	pflag.Parse()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	g, err := gen.New(gen.Kind(*kind), *seed)
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}
	g.WordsPerLine = *perLine

	start := time.Now()
	if err := g.WriteFile(*out, *lines); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d lines of %s to %s in %v (seed %d)\n", *lines, *kind, *out, time.Since(start), *seed)
}
