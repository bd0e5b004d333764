// Package bpe trains and applies byte-level Byte-Pair-Encoding models.
//
// Training starts from one token per input byte (ids 0-255) and repeatedly
// replaces the most frequent adjacent pair with a new id (256, 257, ...).
// The ordered list of learned merges is the model.
package bpe

import (
	"fmt"
	"strconv"
)

// NumBytes is the number of base tokens, one per byte value.
const NumBytes = 256

// Pair is two adjacent token ids.
type Pair struct {
	Left, Right int32
}

// Less orders pairs lexicographically by (Left, Right).
func (p Pair) Less(o Pair) bool {
	if p.Left != o.Left {
		return p.Left < o.Left
	}
	return p.Right < o.Right
}

func (p Pair) String() string {
	return "(" + strconv.Itoa(int(p.Left)) + ", " + strconv.Itoa(int(p.Right)) + ")"
}

// Merge is a learned rule: Pair becomes ID. Rank is the 0-based learning
// order and ID is always NumBytes + Rank.
type Merge struct {
	Pair Pair
	ID   int32
	Rank int
}

// ExpandBytes returns one token per byte of text.
func ExpandBytes(text string) ([]int32, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: empty text", ErrInput)
	}
	ids := make([]int32, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int32(text[i])
	}
	return ids, nil
}
