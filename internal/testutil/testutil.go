// Package testutil provides shared corpus fixtures for tests.
//
// Corpora are generated from a fixed seed so every test run, and every
// thread count within a run, sees exactly the same bytes.
//
// Typical usage:
//
//	func TestTrainSomething(t *testing.T) {
//	    text := testutil.Corpus(64 << 10)
//	    path := testutil.WriteCorpus(t, text)
//	    ...
//	}
package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TinyCorpus is the classic worked BPE example.
const TinyCorpus = "aaabdaaabac"

var words = []string{
	"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
	"tokenizer", "merge", "pair", "byte", "vocabulary", "rank",
	"naïve", "café", "straße", "日本語", "données", "🙂",
}

// Corpus returns deterministic pseudo-text of at least size bytes built from
// a small multilingual word list, so it has plenty of repeated pairs.
func Corpus(size int) string {
	rng := rand.New(rand.NewSource(42))
	var sb strings.Builder
	sb.Grow(size + 32)
	for sb.Len() < size {
		sb.WriteString(words[rng.Intn(len(words))])
		switch rng.Intn(12) {
		case 0:
			sb.WriteString(".\n")
		case 1:
			sb.WriteString(", ")
		default:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// WriteCorpus writes text into a fresh temp dir and returns its path.
func WriteCorpus(tb testing.TB, text string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		tb.Fatalf("write corpus: %v", err)
	}
	return path
}

// RequireCorpusFile skips the test if the corpus named by the
// QUICKTOK_CORPUS environment variable is unset or missing, and otherwise
// returns its path.
func RequireCorpusFile(tb testing.TB) string {
	tb.Helper()

	path := os.Getenv("QUICKTOK_CORPUS")
	if path == "" {
		tb.Skip("QUICKTOK_CORPUS not set; skipping real-corpus test")
	}
	if _, err := os.Stat(path); err != nil {
		tb.Skipf("corpus %q not available: %v", path, err)
	}
	return path
}
