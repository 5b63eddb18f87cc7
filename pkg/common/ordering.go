package common

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ordering parses tokens into Records and defines their total order.
//
// PartitionKey must be monotone with Compare: Compare(a, b) < 0 implies
// PartitionKey(a) <= PartitionKey(b). Range bucketing relies on it.
type Ordering interface {
	Parse(token string) (Record, error)
	Compare(a, b Record) int
	PartitionKey(r Record) float64
}

// NewOrdering returns the ordering for mode. prefixRunes is only used by
// text mode and is clamped to [1, MaxPrefixRunes].
func NewOrdering(mode Mode, prefixRunes int) (Ordering, error) {
	switch mode {
	case ModeText, "":
		return NewTextOrdering(prefixRunes), nil
	case ModeNumeric:
		return NumericOrdering{}, nil
	default:
		return nil, fmt.Errorf("unsupported mode %q", mode)
	}
}

// MaxPrefixRunes keeps the text partition key inside uint64.
const MaxPrefixRunes = 3

const runeBase = unicode.MaxRune + 1

// TextOrdering compares lines case-insensitively.
type TextOrdering struct {
	prefixRunes int
}

func NewTextOrdering(prefixRunes int) TextOrdering {
	if prefixRunes < 1 {
		prefixRunes = 1
	}
	if prefixRunes > MaxPrefixRunes {
		prefixRunes = MaxPrefixRunes
	}
	return TextOrdering{prefixRunes: prefixRunes}
}

func (TextOrdering) Parse(token string) (Record, error) {
	return Record{Line: token}, nil
}

func (TextOrdering) Compare(a, b Record) int {
	return CompareFold(a.Line, b.Line)
}

// PartitionKey reads the first case-folded runes as digits of a base
// unicode.MaxRune+1 number. Missing runes count as zero, so a prefix never
// gets a larger key than a string it prefixes.
func (o TextOrdering) PartitionKey(r Record) float64 {
	var key uint64
	s := r.Line
	for i := 0; i < o.prefixRunes; i++ {
		var d rune
		if s != "" {
			var n int
			d, n = utf8.DecodeRuneInString(s)
			s = s[n:]
			d = foldRune(d)
		}
		key = key*runeBase + uint64(d)
	}
	return float64(key)
}

// NumericOrdering compares tokens by their float64 value.
type NumericOrdering struct{}

func (NumericOrdering) Parse(token string) (Record, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedRecord, token)
	}
	return Record{Line: token, Num: v}, nil
}

func (NumericOrdering) Compare(a, b Record) int {
	return cmp.Compare(a.Num, b.Num)
}

func (NumericOrdering) PartitionKey(r Record) float64 {
	return r.Num
}

// CompareFold compares a and b rune by rune after simple case folding.
// It does not allocate.
func CompareFold(a, b string) int {
	for a != "" && b != "" {
		var ra, rb rune
		if c := a[0]; c < utf8.RuneSelf {
			ra, a = rune(c), a[1:]
		} else {
			r, n := utf8.DecodeRuneInString(a)
			ra, a = r, a[n:]
		}
		if c := b[0]; c < utf8.RuneSelf {
			rb, b = rune(c), b[1:]
		} else {
			r, n := utf8.DecodeRuneInString(b)
			rb, b = r, b[n:]
		}
		if ra == rb {
			continue
		}
		fa, fb := foldRune(ra), foldRune(rb)
		if fa < fb {
			return -1
		}
		if fa > fb {
			return 1
		}
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}
	return unicode.ToLower(unicode.ToUpper(r))
}
