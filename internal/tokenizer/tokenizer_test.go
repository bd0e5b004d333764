package tokenizer

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/modelfile"
	"github.com/google/go-cmp/cmp"
)

// tinyModelPath writes the model learned from "aaabdaaabac" at vocab 259.
func tinyModelPath(t *testing.T) string {
	t.Helper()

	m, err := bpe.NewModel([]bpe.Pair{{Left: 'a', Right: 'a'}, {Left: 'a', Right: 'b'}, {Left: 256, Right: 257}})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tiny.model")
	if err := modelfile.Save(m, path, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	return path
}

// ---------------------------------------------------------------------------
// NewBPETokenizer
// ---------------------------------------------------------------------------

func TestNewBPETokenizer_ValidModel(t *testing.T) {
	tok, err := NewBPETokenizer(tinyModelPath(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer: %v", err)
	}

	if tok.Model().VocabSize() != 259 {
		t.Errorf("VocabSize = %d, want 259", tok.Model().VocabSize())
	}
}

func TestNewBPETokenizer_MissingFile(t *testing.T) {
	_, err := NewBPETokenizer("/nonexistent/tokenizer.model")
	if !errors.Is(err, bpe.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestNewBPETokenizer_EmptyPath(t *testing.T) {
	_, err := NewBPETokenizer("")
	if !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Encode / Decode
// ---------------------------------------------------------------------------

func TestEncode_WorkedExample(t *testing.T) {
	tok, err := NewBPETokenizer(tinyModelPath(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer: %v", err)
	}

	got, err := tok.Encode("aaabdaaabac")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []int64{258, 'd', 258, 'a', 'c'}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}

	text, err := tok.Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if text != "aaabdaaabac" {
		t.Errorf("Decode = %q", text)
	}
}

func TestDecode_OutOfRange(t *testing.T) {
	tok, err := NewBPETokenizer(tinyModelPath(t))
	if err != nil {
		t.Fatalf("NewBPETokenizer: %v", err)
	}

	for _, ids := range [][]int64{{-1}, {1 << 40}, {259}} {
		if _, err := tok.Decode(ids); !errors.Is(err, bpe.ErrDecode) {
			t.Errorf("Decode(%v) err = %v, want ErrDecode", ids, err)
		}
	}
}

func TestDecodeLossy(t *testing.T) {
	m, _ := bpe.NewModel(nil)

	tok, err := NewFromModel(m)
	if err != nil {
		t.Fatalf("NewFromModel: %v", err)
	}

	if _, err := tok.Decode([]int64{'a', 0xff}); !errors.Is(err, bpe.ErrDecode) {
		t.Fatalf("strict Decode err = %v, want ErrDecode", err)
	}

	got, err := tok.DecodeLossy([]int64{'a', 0xff})
	if err != nil {
		t.Fatalf("DecodeLossy: %v", err)
	}

	if got != "a\ufffd" {
		t.Errorf("DecodeLossy = %q, want %q", got, "a\ufffd")
	}

	if _, err := tok.DecodeLossy([]int64{300}); !errors.Is(err, bpe.ErrDecode) {
		t.Errorf("DecodeLossy unknown id err = %v, want ErrDecode", err)
	}
}

// ---------------------------------------------------------------------------
// Encode cache
// ---------------------------------------------------------------------------

func TestWithCache_ReusesEncodings(t *testing.T) {
	tok, err := NewBPETokenizer(tinyModelPath(t), WithCache(2))
	if err != nil {
		t.Fatalf("NewBPETokenizer: %v", err)
	}

	first, _ := tok.Encode("aaabdaaabac")
	first[0] = -1 // callers own the returned slice

	second, _ := tok.Encode("aaabdaaabac")
	if diff := cmp.Diff([]int64{258, 'd', 258, 'a', 'c'}, second); diff != "" {
		t.Errorf("cached Encode mismatch (-want +got):\n%s", diff)
	}

	if tok.CacheLen() != 1 {
		t.Errorf("CacheLen = %d, want 1", tok.CacheLen())
	}

	for _, s := range []string{"ab", "ba", "aa"} {
		_, _ = tok.Encode(s)
	}

	if tok.CacheLen() != 2 {
		t.Errorf("CacheLen = %d, want 2 after eviction", tok.CacheLen())
	}
}

func TestWithCache_RejectsNonPositiveSize(t *testing.T) {
	m, _ := bpe.NewModel(nil)

	if _, err := NewFromModel(m, WithCache(0)); !errors.Is(err, bpe.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}

	tok, _ := NewFromModel(m)
	if tok.CacheLen() != 0 {
		t.Errorf("uncached tokenizer CacheLen = %d", tok.CacheLen())
	}
}
