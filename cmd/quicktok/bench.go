package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-quicktok/internal/bench"
	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/corpus"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		threadCounts []int
		format       string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time training at several thread counts and check the results agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Paths.CorpusPath == "" {
				return fmt.Errorf("%w: --corpus is required for bench", bpe.ErrConfig)
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("%w: --format must be 'table' or 'json'", bpe.ErrConfig)
			}

			text, err := corpus.ReadFile(cfg.Paths.CorpusPath, corpus.Options{MaxBytes: cfg.Train.MaxBytes})
			if err != nil {
				return err
			}

			results, err := bench.Run(cmd.Context(), bench.Options{
				Text:      text,
				VocabSize: cfg.Train.VocabSize,
				Threads:   threadCounts,
				Logger:    slog.Default(),
			})
			if err != nil && !errors.Is(err, bench.ErrNondeterministic) {
				return err
			}

			durations := make([]time.Duration, len(results))
			for i, r := range results {
				durations[i] = r.Duration
			}
			stats := bench.ComputeStats(durations)

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				if ferr := bench.FormatJSON(results, stats, w); ferr != nil {
					return ferr
				}
			default:
				bench.FormatTable(results, stats, w)
			}

			return err
		},
	}

	cmd.Flags().IntSliceVar(&threadCounts, "thread-counts", []int{1, 2, 4}, "Thread counts to train with, one run each")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")

	return cmd
}
