// Package tokenizer provides text tokenization backed by a trained
// byte-level BPE model.
package tokenizer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/modelfile"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Tokenizer converts between text and token IDs.
type Tokenizer interface {
	// Encode tokenizes text and returns token IDs.
	Encode(text string) ([]int64, error)
	// Decode reverses Encode.
	Decode(ids []int64) (string, error)
}

// ErrEmptyPath is returned when NewBPETokenizer is called with an empty path.
var ErrEmptyPath = errors.New("tokenizer model path must not be empty")

// BPETokenizer implements Tokenizer using a quicktok model. It is safe for
// concurrent use.
type BPETokenizer struct {
	model *bpe.Model
	cache *lru.Cache[string, []int32]
}

var _ Tokenizer = (*BPETokenizer)(nil)

// Option configures a BPETokenizer.
type Option func(*BPETokenizer) error

// WithCache keeps the encodings of the size most recently seen inputs.
func WithCache(size int) Option {
	return func(t *BPETokenizer) error {
		c, err := lru.New[string, []int32](size)
		if err != nil {
			return fmt.Errorf("%w: encode cache: %w", bpe.ErrConfig, err)
		}
		t.cache = c
		return nil
	}
}

// NewBPETokenizer loads a model file written by modelfile.Save.
func NewBPETokenizer(modelPath string, opts ...Option) (*BPETokenizer, error) {
	if modelPath == "" {
		return nil, ErrEmptyPath
	}

	m, err := modelfile.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load bpe model %q: %w", modelPath, err)
	}

	return NewFromModel(m, opts...)
}

// NewFromModel wraps an already trained or loaded model.
func NewFromModel(m *bpe.Model, opts ...Option) (*BPETokenizer, error) {
	t := &BPETokenizer{model: m}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Model returns the underlying model.
func (t *BPETokenizer) Model() *bpe.Model { return t.model }

// Encode tokenizes text. It never fails; the error is part of the
// Tokenizer contract.
func (t *BPETokenizer) Encode(text string) ([]int64, error) {
	ids := t.encode(text)

	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}

	return out, nil
}

// Decode returns the text for ids, failing with bpe.ErrDecode on unknown
// ids or bytes that are not valid UTF-8.
func (t *BPETokenizer) Decode(ids []int64) (string, error) {
	narrow, err := narrowIDs(ids)
	if err != nil {
		return "", err
	}

	return t.model.Decode(narrow)
}

// DecodeLossy is Decode with invalid UTF-8 replaced by U+FFFD, for display.
func (t *BPETokenizer) DecodeLossy(ids []int64) (string, error) {
	narrow, err := narrowIDs(ids)
	if err != nil {
		return "", err
	}

	b, err := t.model.DecodeBytes(narrow)
	if err != nil {
		return "", err
	}

	return strings.ToValidUTF8(string(b), "\ufffd"), nil
}

func (t *BPETokenizer) encode(text string) []int32 {
	if t.cache == nil {
		return t.model.Encode(text)
	}
	if ids, ok := t.cache.Get(text); ok {
		return ids
	}

	ids := t.model.Encode(text)
	t.cache.Add(text, ids)

	return ids
}

// CacheLen reports how many encodings are cached.
func (t *BPETokenizer) CacheLen() int {
	if t.cache == nil {
		return 0
	}
	return t.cache.Len()
}

func narrowIDs(ids []int64) ([]int32, error) {
	out := make([]int32, len(ids))
	for i, id := range ids {
		if id < 0 || id > math.MaxInt32 {
			return nil, fmt.Errorf("%w: token %d at position %d is out of range", bpe.ErrDecode, id, i)
		}
		out[i] = int32(id)
	}

	return out, nil
}
