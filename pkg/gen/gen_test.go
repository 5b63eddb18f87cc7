package gen

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"unicode"
)

func TestWordsAreBuiltFromSyllables(t *testing.T) {
	g, err := New(KindWords, 42)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	capitalized := 0
	for i := 0; i < 500; i++ {
		w := g.Word()
		if len(w) != 4 && len(w) != 6 {
			t.Fatalf("word %q is not two or three syllables", w)
		}
		if unicode.IsUpper(rune(w[0])) {
			capitalized++
		}
		if strings.ToLower(w[1:]) != w[1:] {
			t.Fatalf("only the first letter may be upper case: %q", w)
		}
	}
	if capitalized == 0 || capitalized == 500 {
		t.Fatalf("expected a mix of capitalized words, got %d/500", capitalized)
	}
}

func TestSameSeedSameOutput(t *testing.T) {
	var a, b bytes.Buffer
	g1, _ := New(KindNumbers, 7)
	g2, _ := New(KindNumbers, 7)
	if err := g1.Write(&a, 100); err != nil {
		t.Fatal(err)
	}
	if err := g2.Write(&b, 100); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatal("same seed should reproduce the same file")
	}
	for _, line := range strings.Split(strings.TrimSpace(a.String()), "\n") {
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n >= MaxNumber {
			t.Fatalf("bad number line %q", line)
		}
	}
}

func TestWriteFileWordsPerLine(t *testing.T) {
	g, _ := New(KindWords, 1)
	g.WordsPerLine = 3
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := g.WriteFile(path, 20); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if len(strings.Fields(l)) != 3 {
			t.Fatalf("expected 3 words in %q", l)
		}
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := New("emoji", 1); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}
