package bpe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/example/go-quicktok/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

func quietTrainer(t *testing.T, threads int, opts ...Option) *Trainer {
	t.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)

	tr, err := NewTrainer(threads, opts...)
	if err != nil {
		t.Fatalf("NewTrainer(%d): %v", threads, err)
	}
	return tr
}

func TestTrain_WorkedExample(t *testing.T) {
	var rounds []Round

	tr := quietTrainer(t, 1, WithRoundHook(func(r Round) { rounds = append(rounds, r) }))

	m, err := tr.Train(context.Background(), testutil.TinyCorpus, 259)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	const a, b = 'a', 'b'
	want := []Merge{
		{Pair: Pair{a, a}, ID: 256, Rank: 0},
		{Pair: Pair{a, b}, ID: 257, Rank: 1},
		{Pair: Pair{256, 257}, ID: 258, Rank: 2},
	}
	if diff := cmp.Diff(want, m.Merges()); diff != "" {
		t.Fatalf("merges mismatch (-want +got):\n%s", diff)
	}

	wantCounts := []int{4, 2, 2}
	wantLens := []int{9, 7, 5}
	for i, r := range rounds {
		if r.Count != wantCounts[i] || r.LenAfter != wantLens[i] {
			t.Errorf("round %d: count=%d len=%d, want count=%d len=%d",
				i, r.Count, r.LenAfter, wantCounts[i], wantLens[i])
		}
	}

	// "XdXac"
	wantIDs := []int32{258, 'd', 258, 'a', 'c'}
	if diff := cmp.Diff(wantIDs, m.Encode(testutil.TinyCorpus)); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}

	got, err := m.Decode(m.Encode(testutil.TinyCorpus))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got != testutil.TinyCorpus {
		t.Errorf("round trip = %q, want %q", got, testutil.TinyCorpus)
	}

	if m.VocabSize() != 259 {
		t.Errorf("VocabSize = %d, want 259", m.VocabSize())
	}
}

func TestTrain_DeterministicAcrossThreadCounts(t *testing.T) {
	// Large enough that four workers each get a full chunk.
	text := testutil.Corpus(5 * minChunkLen * 4)

	base, err := quietTrainer(t, 1).Train(context.Background(), text, 400)
	if err != nil {
		t.Fatalf("Train threads=1: %v", err)
	}

	for _, threads := range []int{2, 4, 8} {
		m, err := quietTrainer(t, threads).Train(context.Background(), text, 400)
		if err != nil {
			t.Fatalf("Train threads=%d: %v", threads, err)
		}

		if diff := cmp.Diff(base.Merges(), m.Merges()); diff != "" {
			t.Errorf("threads=%d merges differ (-1 thread +%d threads):\n%s", threads, threads, diff)
		}
	}
}

// Runs only when QUICKTOK_CORPUS names a real text file.
func TestTrain_RealCorpusDeterministicAcrossThreadCounts(t *testing.T) {
	path := testutil.RequireCorpusFile(t)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read corpus: %v", err)
	}
	if len(raw) > 1<<20 {
		raw = raw[:1<<20]
	}
	text := strings.ToValidUTF8(string(raw), "\ufffd")

	var models []*Model
	for _, threads := range []int{1, 4} {
		tr := quietTrainer(t, threads)
		if tr.Threads() != threads {
			t.Fatalf("Threads() = %d, want %d", tr.Threads(), threads)
		}

		m, err := tr.Train(context.Background(), text, 512)
		if err != nil {
			t.Fatalf("Train threads=%d: %v", threads, err)
		}
		models = append(models, m)
	}

	if diff := cmp.Diff(models[0].Merges(), models[1].Merges()); diff != "" {
		t.Errorf("merges differ (-1 thread +4 threads):\n%s", diff)
	}
}

func TestTrain_MonotonicCompression(t *testing.T) {
	text := testutil.Corpus(8 << 10)

	var rounds []Round
	tr := quietTrainer(t, 2, WithRoundHook(func(r Round) { rounds = append(rounds, r) }))

	m, err := tr.Train(context.Background(), text, 350)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if len(rounds) != m.NumMerges() {
		t.Fatalf("rounds = %d, merges = %d", len(rounds), m.NumMerges())
	}

	for i, r := range rounds {
		if r.LenAfter >= r.LenBefore {
			t.Errorf("round %d: len %d -> %d, want strictly shorter", i, r.LenBefore, r.LenAfter)
		}

		if r.Merge.Rank != i || r.Merge.ID != int32(NumBytes+i) {
			t.Errorf("round %d: merge %+v has wrong rank/id", i, r.Merge)
		}
	}

	if got := m.Stats().FinalTokens; got != rounds[len(rounds)-1].LenAfter {
		t.Errorf("FinalTokens = %d, want %d", got, rounds[len(rounds)-1].LenAfter)
	}
}

func TestTrain_EarlyStopWithoutRepeatedPairs(t *testing.T) {
	m, err := quietTrainer(t, 1).Train(context.Background(), "abcdef", 300)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if m.VocabSize() != NumBytes || m.NumMerges() != 0 {
		t.Errorf("VocabSize = %d merges = %d, want 256 and 0", m.VocabSize(), m.NumMerges())
	}

	if !m.Stats().StoppedEarly {
		t.Error("StoppedEarly = false, want true")
	}
}

func TestTrain_EarlyStopLeavesOnlySingletonPairs(t *testing.T) {
	text := "the cat sat on the mat"

	m, err := quietTrainer(t, 1).Train(context.Background(), text, 1000)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if m.VocabSize() >= 1000 || !m.Stats().StoppedEarly {
		t.Fatalf("VocabSize = %d stoppedEarly = %v, want early stop", m.VocabSize(), m.Stats().StoppedEarly)
	}

	for p, c := range CountPairs(m.Encode(text)) {
		if c > 1 {
			t.Errorf("pair %v still occurs %d times after early stop", p, c)
		}
	}
}

func TestTrain_VocabSizeEqualsBaseLearnsNothing(t *testing.T) {
	m, err := quietTrainer(t, 1).Train(context.Background(), testutil.TinyCorpus, NumBytes)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if m.NumMerges() != 0 || m.Stats().StoppedEarly {
		t.Errorf("merges = %d stoppedEarly = %v, want 0 and false", m.NumMerges(), m.Stats().StoppedEarly)
	}
}

func TestTrain_InputAndConfigErrors(t *testing.T) {
	tr := quietTrainer(t, 1)

	if _, err := tr.Train(context.Background(), "", 300); !errors.Is(err, ErrInput) {
		t.Errorf("Train(\"\", 300) err = %v, want ErrInput", err)
	}

	if _, err := tr.Train(context.Background(), "ab", 100); !errors.Is(err, ErrConfig) {
		t.Errorf("Train(\"ab\", 100) err = %v, want ErrConfig", err)
	}
}

func TestNewTrainer_Threads(t *testing.T) {
	if got := quietTrainer(t, 3).Threads(); got != 3 {
		t.Errorf("Threads() = %d, want 3", got)
	}
}

func TestNewTrainer_RejectsZeroThreads(t *testing.T) {
	if _, err := NewTrainer(0); !errors.Is(err, ErrConfig) {
		t.Fatalf("NewTrainer(0) err = %v, want ErrConfig", err)
	}
}

func TestTrain_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := quietTrainer(t, 1).Train(ctx, testutil.TinyCorpus, 300)
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("err = %v, want ErrTraining", err)
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}

	if m != nil {
		t.Error("expected no model on abort")
	}
}

func TestTrain_CancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := quietTrainer(t, 1, WithRoundHook(func(r Round) {
		if r.Merge.Rank == 2 {
			cancel()
		}
	}))

	_, err := tr.Train(ctx, testutil.Corpus(4096), 400)
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("err = %v, want ErrTraining", err)
	}
}

func TestStateString(t *testing.T) {
	if StateCountingPairs.String() != "counting-pairs" {
		t.Errorf("String() = %q", StateCountingPairs.String())
	}

	if State(99).String() != "state(99)" {
		t.Errorf("String() = %q", State(99).String())
	}
}
