package bpe

import (
	"fmt"
	"slices"
)

// TrainingStats describes the run that produced a model. Loaded models carry
// the zero value.
type TrainingStats struct {
	InputBytes     int
	FinalTokens    int
	RequestedVocab int
	StoppedEarly   bool
}

// Model is a trained merge table together with the vocabulary it implies.
// It is immutable after construction and safe for concurrent use.
type Model struct {
	merges []Merge
	vocab  [][]byte
	ranks  map[Pair]int
	stats  TrainingStats
}

// NewModel builds a model from pairs listed in rank order. Pair i defines
// token NumBytes+i and may only reference ids below it.
func NewModel(pairs []Pair) (*Model, error) {
	merges := make([]Merge, len(pairs))
	for i, p := range pairs {
		limit := int32(NumBytes + i)
		if p.Left < 0 || p.Left >= limit || p.Right < 0 || p.Right >= limit {
			return nil, fmt.Errorf("%w: merge %d %v references an id outside [0, %d)", ErrFormat, i, p, limit)
		}
		merges[i] = Merge{Pair: p, ID: limit, Rank: i}
	}
	return newModel(merges, TrainingStats{}), nil
}

func newModel(merges []Merge, stats TrainingStats) *Model {
	ranks := make(map[Pair]int, len(merges))
	for _, m := range merges {
		if _, dup := ranks[m.Pair]; !dup {
			ranks[m.Pair] = m.Rank
		}
	}
	return &Model{
		merges: merges,
		vocab:  BuildVocab(merges),
		ranks:  ranks,
		stats:  stats,
	}
}

// BuildVocab expands every id in [0, NumBytes+len(merges)) into the bytes it
// stands for. Merges must be in rank order; each entry is filled from two
// entries that precede it.
func BuildVocab(merges []Merge) [][]byte {
	vocab := make([][]byte, NumBytes+len(merges))
	for b := range NumBytes {
		vocab[b] = []byte{byte(b)}
	}
	for _, m := range merges {
		left, right := vocab[m.Pair.Left], vocab[m.Pair.Right]
		tok := make([]byte, 0, len(left)+len(right))
		tok = append(tok, left...)
		vocab[m.ID] = append(tok, right...)
	}
	return vocab
}

// VocabSize is NumBytes plus the number of learned merges.
func (m *Model) VocabSize() int { return NumBytes + len(m.merges) }

// NumMerges returns the number of learned merges.
func (m *Model) NumMerges() int { return len(m.merges) }

// Merges returns a copy of the merge table in rank order.
func (m *Model) Merges() []Merge { return slices.Clone(m.merges) }

// Pairs returns the merged pairs in rank order.
func (m *Model) Pairs() []Pair {
	pairs := make([]Pair, len(m.merges))
	for i, mg := range m.merges {
		pairs[i] = mg.Pair
	}
	return pairs
}

// TokenBytes returns a copy of the bytes represented by id.
func (m *Model) TokenBytes(id int32) ([]byte, bool) {
	if id < 0 || int(id) >= len(m.vocab) {
		return nil, false
	}
	return slices.Clone(m.vocab[id]), true
}

// Stats reports how the model was trained.
func (m *Model) Stats() TrainingStats { return m.stats }

// Equal reports whether both models hold the same merge table.
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	return slices.Equal(m.merges, o.merges)
}
