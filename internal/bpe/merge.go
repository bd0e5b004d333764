package bpe

// SelectMerge returns the most frequent pair and its count. Ties go to the
// lexicographically smallest (Left, Right). It returns ErrNoMergeAvailable
// when counts is empty or no pair occurs more than once.
func SelectMerge(counts PairCounts) (Pair, int, error) {
	var (
		best      Pair
		bestCount int
	)
	for p, c := range counts {
		if c > bestCount || (c == bestCount && p.Less(best)) {
			best, bestCount = p, c
		}
	}
	if bestCount <= 1 {
		return Pair{}, bestCount, ErrNoMergeAvailable
	}
	return best, bestCount, nil
}

// ApplyMerge returns a new sequence in which every non-overlapping occurrence
// of pair, scanning left to right, is replaced by id.
func ApplyMerge(ids []int32, pair Pair, id int32) []int32 {
	return applyMergeInto(make([]int32, 0, len(ids)), ids, pair, id)
}

// applyMergeInto writes the merged sequence into dst, which must not share
// memory with ids.
func applyMergeInto(dst, ids []int32, pair Pair, id int32) []int32 {
	dst = dst[:0]
	for i := 0; i < len(ids); {
		if i+1 < len(ids) && ids[i] == pair.Left && ids[i+1] == pair.Right {
			dst = append(dst, id)
			i += 2
			continue
		}
		dst = append(dst, ids[i])
		i++
	}
	return dst
}
