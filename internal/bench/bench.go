// Package bench provides benchmarking primitives for the quicktok bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/olekukonko/tablewriter"
)

// ErrNondeterministic is returned when two runs learned different merge tables.
var ErrNondeterministic = errors.New("merge tables differ between runs")

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and model metadata for a single training run.
type RunResult struct {
	Index     int
	Threads   int
	Duration  time.Duration
	VocabSize int
	Tokens    int
	Speedup   float64 // relative to the first run
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// An empty slice yields zero Stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// CalcSpeedup returns base / d. Returns 0 if d is zero to avoid division by zero.
func CalcSpeedup(base, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(base) / float64(d)
}

// ---------------------------------------------------------------------------
// Training runs
// ---------------------------------------------------------------------------

// Options describes a bench session: the same text and vocab size trained
// once per entry in Threads.
type Options struct {
	Text      string
	VocabSize int
	Threads   []int
	Logger    *slog.Logger
}

// Run trains once per thread count and checks that every run learned the
// same merge table. Results are returned even when ErrNondeterministic is.
func Run(ctx context.Context, opts Options) ([]RunResult, error) {
	if len(opts.Threads) == 0 {
		return nil, fmt.Errorf("%w: no thread counts to bench", bpe.ErrConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]RunResult, 0, len(opts.Threads))
	models := make([]*bpe.Model, 0, len(opts.Threads))

	for i, threads := range opts.Threads {
		tr, err := bpe.NewTrainer(threads, bpe.WithLogger(logger))
		if err != nil {
			return nil, err
		}

		start := time.Now()
		m, err := tr.Train(ctx, opts.Text, opts.VocabSize)
		if err != nil {
			return nil, fmt.Errorf("run %d (threads=%d) failed: %w", i+1, threads, err)
		}
		dur := time.Since(start)

		results = append(results, RunResult{
			Index:     i,
			Threads:   tr.Threads(),
			Duration:  dur,
			VocabSize: m.VocabSize(),
			Tokens:    m.Stats().FinalTokens,
		})
		models = append(models, m)
	}

	for i := range results {
		results[i].Speedup = CalcSpeedup(results[0].Duration, results[i].Duration)
	}

	return results, CheckDeterminism(models)
}

// CheckDeterminism returns ErrNondeterministic naming the first model whose
// merge table differs from the first one.
func CheckDeterminism(models []*bpe.Model) error {
	for i := 1; i < len(models); i++ {
		if !models[0].Equal(models[i]) {
			return fmt.Errorf("%w: run 1 and run %d", ErrNondeterministic, i+1)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"RUN", "THREADS", "MS", "VOCAB", "TOKENS", "SPEEDUP"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)

	for _, r := range runs {
		table.Append([]string{
			strconv.Itoa(r.Index + 1),
			strconv.Itoa(r.Threads),
			fmt.Sprintf("%.1f", ms(r.Duration)),
			strconv.Itoa(r.VocabSize),
			strconv.Itoa(r.Tokens),
			fmt.Sprintf("%.2fx", r.Speedup),
		})
	}
	table.Render()

	fmt.Fprintf(w, "min %.1f ms  mean %.1f ms  max %.1f ms\n", ms(stats.Min), ms(stats.Mean), ms(stats.Max))
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Threads    int     `json:"threads"`
	DurationMS float64 `json:"duration_ms"`
	VocabSize  int     `json:"vocab_size"`
	Tokens     int     `json:"tokens"`
	Speedup    float64 `json:"speedup"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  ms(stats.Min),
			MeanMS: ms(stats.Mean),
			MaxMS:  ms(stats.Max),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Threads:    r.Threads,
			DurationMS: ms(r.Duration),
			VocabSize:  r.VocabSize,
			Tokens:     r.Tokens,
			Speedup:    r.Speedup,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jr)
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
