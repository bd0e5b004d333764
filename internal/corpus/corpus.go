// Package corpus supplies training text to the trainer.
//
// Acquiring a corpus (downloading, unpacking) is the caller's job; this
// package only turns a file or stream into one in-memory string.
package corpus

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/example/go-quicktok/internal/bpe"
	"golang.org/x/text/encoding/unicode"
)

// Options controls how raw corpus bytes become training text.
type Options struct {
	// MaxBytes truncates the input to its first MaxBytes bytes. Zero means
	// no limit.
	MaxBytes int64
}

// ReadFile reads the corpus at path.
func ReadFile(path string, opts Options) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open corpus %s: %w", bpe.ErrIO, path, err)
	}
	defer f.Close()

	text, err := Read(f, opts)
	if err != nil {
		return "", fmt.Errorf("corpus %s: %w", path, err)
	}
	return text, nil
}

// Read reads all of r. Bytes that are not valid UTF-8, including a code
// point cut in half by MaxBytes, are replaced with U+FFFD.
func Read(r io.Reader, opts Options) (string, error) {
	if opts.MaxBytes < 0 {
		return "", fmt.Errorf("%w: max bytes must not be negative, got %d", bpe.ErrConfig, opts.MaxBytes)
	}
	if opts.MaxBytes > 0 {
		r = io.LimitReader(r, opts.MaxBytes)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read corpus: %w", bpe.ErrIO, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: corpus is empty", bpe.ErrInput)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	repaired, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: repair corpus encoding: %w", bpe.ErrInput, err)
	}
	return string(repaired), nil
}
