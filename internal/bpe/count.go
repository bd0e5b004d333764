package bpe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// minChunkLen is the smallest chunk a counting worker is handed during
// training. Boundary pairs are counted serially, so chunks must dwarf the
// worker count.
const minChunkLen = 1 << 12

// PairCounts maps each adjacent pair to its number of occurrences.
type PairCounts map[Pair]int

// CountPairs counts every adjacent pair (ids[i], ids[i+1]).
func CountPairs(ids []int32) PairCounts {
	counts := make(PairCounts)
	countInto(counts, ids)
	return counts
}

func countInto(counts PairCounts, ids []int32) {
	for i := 0; i+1 < len(ids); i++ {
		counts[Pair{ids[i], ids[i+1]}]++
	}
}

// CountPairsParallel splits ids into workers contiguous chunks of near-equal
// size and counts each chunk on its own goroutine. Pairs straddling two chunks
// are counted by the caller's goroutine after the workers finish, so the
// result is identical to CountPairs for any worker count.
func CountPairsParallel(ctx context.Context, ids []int32, workers int) (PairCounts, error) {
	if workers > len(ids) {
		workers = len(ids)
	}
	if workers <= 1 {
		return CountPairs(ids), nil
	}

	bounds := chunkBounds(len(ids), workers)
	partials := make([]PairCounts, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		chunk := ids[bounds[w]:bounds[w+1]]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			counts := make(PairCounts)
			countInto(counts, chunk)
			partials[w] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := partials[0]
	for _, part := range partials[1:] {
		for p, c := range part {
			total[p] += c
		}
	}
	for _, b := range bounds[1:workers] {
		total[Pair{ids[b-1], ids[b]}]++
	}
	return total, nil
}

// chunkBounds returns workers+1 offsets; chunk w is [bounds[w], bounds[w+1]).
func chunkBounds(n, workers int) []int {
	bounds := make([]int, workers+1)
	for w := range bounds {
		bounds[w] = w * n / workers
	}
	return bounds
}

// effectiveWorkers caps threads so that no chunk is shorter than minChunkLen.
func effectiveWorkers(n, threads int) int {
	w := n / minChunkLen
	if w > threads {
		w = threads
	}
	if w < 1 {
		w = 1
	}
	return w
}
