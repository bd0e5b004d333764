package modelfile

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/safetensors"
)

const mergesTensor = "merges"

func saveSafetensors(m *bpe.Model, path string) error {
	pairs := m.Pairs()
	data := make([]int32, 0, 2*len(pairs))
	for _, p := range pairs {
		data = append(data, p.Left, p.Right)
	}

	err := safetensors.WriteFile(path, []safetensors.Tensor{{
		Name:  mergesTensor,
		Shape: []int64{int64(len(pairs)), 2},
		Data:  data,
	}}, map[string]string{
		"format":     magic,
		"version":    strconv.Itoa(version),
		"vocab_size": strconv.Itoa(m.VocabSize()),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", bpe.ErrIO, err)
	}
	return nil
}

func loadSafetensors(path string) (*bpe.Model, error) {
	meta, t, err := safetensors.ReadFile(path, mergesTensor)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%w: %w", bpe.ErrIO, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", bpe.ErrFormat, path, err)
	}

	if meta["format"] != magic || meta["version"] != strconv.Itoa(version) {
		return nil, fmt.Errorf("%w: %s: not a %s v%d model (metadata %v)", bpe.ErrFormat, path, magic, version, meta)
	}
	vocabSize, err := parseVocabSize("vocab_size " + meta["vocab_size"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rows, err := t.Rows2()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", bpe.ErrFormat, path, err)
	}
	if rows != vocabSize-bpe.NumBytes {
		return nil, fmt.Errorf("%w: %s: vocab_size %d needs %d merges, found %d",
			bpe.ErrFormat, path, vocabSize, vocabSize-bpe.NumBytes, rows)
	}

	pairs := make([]bpe.Pair, rows)
	for i := range pairs {
		pairs[i] = bpe.Pair{Left: t.Data[2*i], Right: t.Data[2*i+1]}
	}
	m, err := bpe.NewModel(pairs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
