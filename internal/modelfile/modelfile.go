// Package modelfile persists trained BPE models.
//
// The default text format is
//
//	quicktok v1
//	vocab_size 259
//	97 97
//	97 98
//	256 257
//
// with one "left right" line per merge in rank order. Paths ending in
// ".safetensors" use a safetensors container instead: an I32 tensor "merges"
// of shape [n, 2] and the version and vocab size in the metadata.
package modelfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-quicktok/internal/bpe"
)

const (
	magic   = "quicktok"
	version = 1

	// SafetensorsExt selects the safetensors container in Save and Load.
	SafetensorsExt = ".safetensors"
)

// Save writes m to modelPath. When vocabPath is non-empty the human-readable
// vocabulary is written there as well; if that fails the model file is
// removed again.
func Save(m *bpe.Model, modelPath, vocabPath string) error {
	var err error
	if isSafetensors(modelPath) {
		err = saveSafetensors(m, modelPath)
	} else {
		var buf bytes.Buffer
		if err = Encode(&buf, m); err == nil {
			err = writeFile(modelPath, buf.Bytes())
		}
	}
	if err != nil {
		return err
	}

	if vocabPath == "" {
		return nil
	}
	var buf bytes.Buffer
	err = WriteVocab(&buf, m)
	if err == nil {
		err = writeFile(vocabPath, buf.Bytes())
	}
	if err != nil {
		// Leave no model behind without its requested vocab.
		_ = os.Remove(modelPath)
		return err
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*bpe.Model, error) {
	if isSafetensors(path) {
		return loadSafetensors(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", bpe.ErrIO, path, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// Encode writes m in the text format.
func Encode(w io.Writer, m *bpe.Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s v%d\n", magic, version)
	fmt.Fprintf(bw, "vocab_size %d\n", m.VocabSize())
	for _, p := range m.Pairs() {
		fmt.Fprintf(bw, "%d %d\n", p.Left, p.Right)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write model: %w", bpe.ErrIO, err)
	}
	return nil
}

// Decode reads the text format. Truncated or malformed input, a merge count
// that disagrees with vocab_size, and merges that reference ids not yet
// defined are all reported as bpe.ErrFormat.
func Decode(r io.Reader) (*bpe.Model, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			if s := strings.TrimSpace(sc.Text()); s != "" {
				return s, true
			}
		}
		return "", false
	}

	header, ok := next()
	if !ok {
		return nil, scanErr(sc, "missing header")
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	sizeLine, ok := next()
	if !ok {
		return nil, scanErr(sc, "missing vocab_size line")
	}
	vocabSize, err := parseVocabSize(sizeLine)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}

	want := vocabSize - bpe.NumBytes
	pairs := make([]bpe.Pair, 0, min(want, 1<<16))
	for {
		s, ok := next()
		if !ok {
			break
		}
		if len(pairs) == want {
			return nil, fmt.Errorf("%w: line %d: more merges than vocab_size %d allows", bpe.ErrFormat, line, vocabSize)
		}
		p, err := parsePair(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pairs = append(pairs, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read model: %w", bpe.ErrIO, err)
	}
	if len(pairs) != want {
		return nil, fmt.Errorf("%w: vocab_size %d needs %d merges, found %d", bpe.ErrFormat, vocabSize, want, len(pairs))
	}

	return bpe.NewModel(pairs)
}

func checkHeader(s string) error {
	name, ver, ok := strings.Cut(s, " ")
	if !ok || name != magic || !strings.HasPrefix(ver, "v") {
		return fmt.Errorf("%w: not a %s model (header %q)", bpe.ErrFormat, magic, s)
	}
	n, err := strconv.Atoi(ver[1:])
	if err != nil || n != version {
		return fmt.Errorf("%w: unsupported model version %q", bpe.ErrFormat, ver)
	}
	return nil
}

func parseVocabSize(s string) (int, error) {
	key, val, ok := strings.Cut(s, " ")
	if !ok || key != "vocab_size" {
		return 0, fmt.Errorf("%w: expected \"vocab_size N\", got %q", bpe.ErrFormat, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%w: bad vocab_size %q", bpe.ErrFormat, val)
	}
	if n < bpe.NumBytes {
		return 0, fmt.Errorf("%w: vocab_size %d is below %d", bpe.ErrFormat, n, bpe.NumBytes)
	}
	return n, nil
}

func parsePair(s string) (bpe.Pair, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return bpe.Pair{}, fmt.Errorf("%w: expected two ids, got %q", bpe.ErrFormat, s)
	}
	left, err1 := strconv.ParseInt(fields[0], 10, 32)
	right, err2 := strconv.ParseInt(fields[1], 10, 32)
	if err := errors.Join(err1, err2); err != nil {
		return bpe.Pair{}, fmt.Errorf("%w: bad merge %q: %w", bpe.ErrFormat, s, err)
	}
	return bpe.Pair{Left: int32(left), Right: int32(right)}, nil
}

func scanErr(sc *bufio.Scanner, msg string) error {
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read model: %w", bpe.ErrIO, err)
	}
	return fmt.Errorf("%w: %s", bpe.ErrFormat, msg)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", bpe.ErrIO, path, err)
	}
	return nil
}

func isSafetensors(path string) bool {
	return strings.EqualFold(filepath.Ext(path), SafetensorsExt)
}
