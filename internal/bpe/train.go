package bpe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// State is a phase of the training loop.
type State int

const (
	StateInitializing State = iota
	StateCountingPairs
	StateSelectingMerge
	StateApplyingMerge
	StateCheckingTermination
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateCountingPairs:
		return "counting-pairs"
	case StateSelectingMerge:
		return "selecting-merge"
	case StateApplyingMerge:
		return "applying-merge"
	case StateCheckingTermination:
		return "checking-termination"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Round describes one applied merge.
type Round struct {
	Merge     Merge
	Count     int
	LenBefore int
	LenAfter  int
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger used for progress output.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRoundHook registers fn to be called after every applied merge.
func WithRoundHook(fn func(Round)) Option {
	return func(t *Trainer) { t.onRound = fn }
}

// Trainer learns merge tables. A Trainer holds only configuration, so one
// value may run several trainings, including concurrently.
type Trainer struct {
	threads int
	logger  *slog.Logger
	onRound func(Round)
}

// NewTrainer returns a trainer that counts pairs on up to threads goroutines.
func NewTrainer(threads int, opts ...Option) (*Trainer, error) {
	if threads < 1 {
		return nil, fmt.Errorf("%w: thread count must be at least 1, got %d", ErrConfig, threads)
	}
	t := &Trainer{threads: threads, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Threads returns the configured thread count.
func (t *Trainer) Threads() int { return t.threads }

// Train learns up to vocabSize-NumBytes merges from text. Training stops
// early, without error, once no pair occurs more than once; the returned
// model's VocabSize then reflects the merges actually learned.
func (t *Trainer) Train(ctx context.Context, text string, vocabSize int) (*Model, error) {
	if vocabSize < NumBytes {
		return nil, fmt.Errorf("%w: vocab size %d is below the %d base tokens", ErrConfig, vocabSize, NumBytes)
	}
	ids, err := ExpandBytes(text)
	if err != nil {
		return nil, err
	}

	var (
		target    = vocabSize - NumBytes
		merges    = make([]Merge, 0, target)
		scratch   = make([]int32, 0, len(ids))
		stats     = TrainingStats{InputBytes: len(ids), RequestedVocab: vocabSize}
		counts    PairCounts
		best      Pair
		bestCount int
		state     = StateInitializing
	)

	abort := func(err error) (*Model, error) {
		failed := state
		state = StateAborted
		t.logger.Error("bpe training aborted", "state", failed.String(), "merges", len(merges), "error", err)
		return nil, fmt.Errorf("%w: %s at rank %d: %w", ErrTraining, failed, len(merges), err)
	}

	for {
		switch state {
		case StateInitializing:
			t.logger.Info("bpe training started",
				"bytes", len(ids), "vocab_size", vocabSize, "threads", t.threads)
			state = StateCheckingTermination

		case StateCountingPairs:
			if err := ctx.Err(); err != nil {
				return abort(err)
			}
			counts, err = CountPairsParallel(ctx, ids, effectiveWorkers(len(ids), t.threads))
			if err != nil {
				return abort(err)
			}
			state = StateSelectingMerge

		case StateSelectingMerge:
			best, bestCount, err = SelectMerge(counts)
			counts = nil
			switch {
			case errors.Is(err, ErrNoMergeAvailable):
				t.logger.Info("bpe training stopped early: no repeated pair left",
					"merges", len(merges), "max_count", bestCount)
				stats.StoppedEarly = true
				state = StateCompleted
			case err != nil:
				return abort(err)
			default:
				state = StateApplyingMerge
			}

		case StateApplyingMerge:
			m := Merge{Pair: best, ID: int32(NumBytes + len(merges)), Rank: len(merges)}
			before := len(ids)
			next := applyMergeInto(scratch, ids, best, m.ID)
			scratch, ids = ids, next
			merges = append(merges, m)

			t.logger.Debug("bpe merge",
				"rank", m.Rank, "pair", m.Pair.String(), "id", m.ID,
				"count", bestCount, "tokens", len(ids))
			if t.onRound != nil {
				t.onRound(Round{Merge: m, Count: bestCount, LenBefore: before, LenAfter: len(ids)})
			}
			state = StateCheckingTermination

		case StateCheckingTermination:
			if len(merges) >= target {
				state = StateCompleted
			} else {
				state = StateCountingPairs
			}

		case StateCompleted:
			stats.FinalTokens = len(ids)
			model := newModel(merges, stats)
			t.logger.Info("bpe training finished",
				"vocab_size", model.VocabSize(), "merges", model.NumMerges(),
				"tokens", len(ids), "stopped_early", stats.StoppedEarly)
			return model, nil

		default:
			return abort(fmt.Errorf("unexpected state %s", state))
		}
	}
}
