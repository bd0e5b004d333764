package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/config"
	"github.com/example/go-quicktok/internal/corpus"
	"github.com/example/go-quicktok/internal/modelfile"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Learn a merge table from a corpus and write the model",
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
				return fmt.Errorf("%w: --corpus is required for train", bpe.ErrConfig)
			}

			text, err := corpus.ReadFile(cfg.Paths.CorpusPath, corpus.Options{MaxBytes: cfg.Train.MaxBytes})
			if err != nil {
				return err
			}
			return runTrain(cmd.Context(), cfg, text, cmd.OutOrStdout())
		},
	}
}

func runTrain(ctx context.Context, cfg config.Config, text string, w io.Writer) error {
	tr, err := bpe.NewTrainer(cfg.Train.Threads, bpe.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	start := time.Now()
	m, err := tr.Train(ctx, text, cfg.Train.VocabSize)
	if err != nil {
		return err
	}
	slog.Info("training took", "duration", time.Since(start).String())

	if dir := filepath.Dir(cfg.Paths.ModelPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create model directory: %w", bpe.ErrIO, err)
		}
	}

	vocabPath := cfg.ResolvedVocabPath()
	if err := modelfile.Save(m, cfg.Paths.ModelPath, vocabPath); err != nil {
		return err
	}

	st := m.Stats()
	_, _ = fmt.Fprintf(w, "wrote %s: vocab %d, %d merges\n", cfg.Paths.ModelPath, m.VocabSize(), m.NumMerges())
	if vocabPath != "" {
		_, _ = fmt.Fprintf(w, "wrote %s\n", vocabPath)
	}
	if st.FinalTokens > 0 {
		_, _ = fmt.Fprintf(w, "compression: %d bytes -> %d tokens (%.2fx)\n",
			st.InputBytes, st.FinalTokens, float64(st.InputBytes)/float64(st.FinalTokens))
	}
	if st.StoppedEarly {
		_, _ = fmt.Fprintf(w, "stopped early: requested vocab %d, no pair occurs more than once\n", st.RequestedVocab)
	}
	return nil
}
