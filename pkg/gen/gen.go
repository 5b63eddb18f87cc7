// Package gen writes synthetic inputs for trying the sorters out.
package gen

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"runsort/pkg/common"
)

// Kind selects what Generator produces.
type Kind string

const (
	KindWords   Kind = "words"
	KindNumbers Kind = "numbers"
)

// MaxNumber bounds generated integers: they fall in [0, MaxNumber).
const MaxNumber = 1_000_000

var syllables = strings.Fields(`
	ab ac ad af ag al am an ap ar as at
	ba be bi bo bu by ca ce ci co cu cy
	da de di do du dy ed ef eg el em en
	ep er es et ev ex fa fe fi fo fu fy
	ga ge gi go gu gy ha he hi hu hy
	ic id ig il im ip ir is it ja je ji jo ju
	ka ke ki ko ku la le li lo lu ly
	ma me mi mo mu my na ne ni no nu ny
	oc od of og ol om on op or os ot
	pa pe pi po pu py qu ra re ri ro ru ry
	sa se si so su sy ta te ti to tu ty
	ub uc ud uf ug ul um un up ur us ut
	va ve vi vo vu wa we wi wo wy
	ya ye yo yu za ze zi zo zu
`)

type Generator struct {
	Kind         Kind
	WordsPerLine int // words only; <= 1 writes one word per line
	rng          *rand.Rand
}

// New returns a generator seeded with seed, so runs are reproducible.
func New(kind Kind, seed uint64) (*Generator, error) {
	switch kind {
	case KindWords, KindNumbers:
	default:
		return nil, fmt.Errorf("gen: unknown kind %q", kind)
	}
	return &Generator{
		Kind: kind,
		rng:  rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
	}, nil
}

// Word builds a word of two or three syllables, capitalized half the time.
func (g *Generator) Word() string {
	var b strings.Builder
	for n := 2 + g.rng.IntN(2); n > 0; n-- {
		b.WriteString(syllables[g.rng.IntN(len(syllables))])
	}
	w := b.String()
	if g.rng.IntN(2) == 0 {
		w = strings.ToUpper(w[:1]) + w[1:]
	}
	return w
}

func (g *Generator) Number() int {
	return g.rng.IntN(MaxNumber)
}

// Write emits lines to w.
func (g *Generator) Write(w io.Writer, lines int) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < lines; i++ {
		if err := g.line(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (g *Generator) line(bw *bufio.Writer) error {
	if g.Kind == KindNumbers {
		bw.WriteString(strconv.Itoa(g.Number()))
		return bw.WriteByte('\n')
	}
	for i := 0; i < max(g.WordsPerLine, 1); i++ {
		if i > 0 {
			bw.WriteByte(' ')
		}
		bw.WriteString(g.Word())
	}
	return bw.WriteByte('\n')
}

// WriteFile creates path and fills it with lines lines.
func (g *Generator) WriteFile(path string, lines int) error {
	f, err := os.Create(path)
	if err != nil {
		return common.WrapIO("create", path, err)
	}
	if err := g.Write(f, lines); err != nil {
		f.Close()
		return common.WrapIO("write", path, err)
	}
	return common.WrapIO("close", path, f.Close())
}
