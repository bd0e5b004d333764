package bpe

import (
	"fmt"
	"unicode/utf8"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// candidate is an adjacent pair in the sequence being encoded that some merge
// can replace. pos is the index of its left token.
type candidate struct {
	pos         int
	rank        int
	left, right int32
}

func byRankThenPos(a, b interface{}) int {
	x, y := a.(candidate), b.(candidate)
	switch {
	case x.rank != y.rank:
		return x.rank - y.rank
	default:
		return x.pos - y.pos
	}
}

// Encode converts text to token ids by applying the merge table in rank
// order. Lower-ranked merges are applied first and occurrences of the same
// merge left to right, so the result equals calling ApplyMerge once per merge.
func (m *Model) Encode(text string) []int32 {
	if len(text) == 0 {
		return []int32{}
	}
	ids, _ := ExpandBytes(text)
	if len(ids) < 2 || len(m.merges) == 0 {
		return ids
	}

	// Doubly linked list over ids; removed nodes keep their slot.
	n := len(ids)
	prev := make([]int, n)
	next := make([]int, n)
	alive := make([]bool, n)
	for i := range ids {
		prev[i], next[i], alive[i] = i-1, i+1, true
	}
	next[n-1] = -1

	heap := binaryheap.NewWith(byRankThenPos)
	push := func(pos int) {
		if pos < 0 || next[pos] < 0 {
			return
		}
		p := Pair{ids[pos], ids[next[pos]]}
		if rank, ok := m.ranks[p]; ok {
			heap.Push(candidate{pos: pos, rank: rank, left: p.Left, right: p.Right})
		}
	}
	for i := 0; i+1 < n; i++ {
		push(i)
	}

	for !heap.Empty() {
		v, _ := heap.Pop()
		c := v.(candidate)
		r := next[c.pos]
		if !alive[c.pos] || r < 0 || ids[c.pos] != c.left || ids[r] != c.right {
			continue
		}
		ids[c.pos] = m.merges[c.rank].ID
		alive[r] = false
		next[c.pos] = next[r]
		if next[r] >= 0 {
			prev[next[r]] = c.pos
		}
		push(prev[c.pos])
		push(c.pos)
	}

	out := make([]int32, 0, n)
	for i := 0; i >= 0; i = next[i] {
		out = append(out, ids[i])
	}
	return out
}

// DecodeBytes concatenates the bytes of every id. Unknown ids are an
// ErrDecode.
func (m *Model) DecodeBytes(ids []int32) ([]byte, error) {
	var size int
	for i, id := range ids {
		if id < 0 || int(id) >= len(m.vocab) {
			return nil, fmt.Errorf("%w: token %d at position %d is outside the vocabulary of %d", ErrDecode, id, i, len(m.vocab))
		}
		size += len(m.vocab[id])
	}
	out := make([]byte, 0, size)
	for _, id := range ids {
		out = append(out, m.vocab[id]...)
	}
	return out, nil
}

// Decode converts ids back to text. Byte sequences that are not valid UTF-8
// are reported as ErrDecode rather than substituted.
func (m *Model) Decode(ids []int32) (string, error) {
	b, err := m.DecodeBytes(ids)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: decoded bytes are not valid UTF-8", ErrDecode)
	}
	return string(b), nil
}
