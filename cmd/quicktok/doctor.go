package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/go-quicktok/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var sample string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local environment and model checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				Threads:    cfg.Train.Threads,
				CorpusPath: cfg.Paths.CorpusPath,
				Sample:     sample,
			}
			// The default model path is only checked once something has been trained there.
			if _, statErr := os.Stat(cfg.Paths.ModelPath); statErr == nil || cmd.Flags().Changed("model") {
				dcfg.ModelPath = cfg.Paths.ModelPath
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(dcfg, out)

			// Training settings as a whole, beyond the thread count checked above.
			if verr := cfg.Validate(); verr != nil {
				result.AddFailure(fmt.Sprintf("config: %v", verr))
				_, _ = fmt.Fprintf(out, "%s config: %v\n", doctor.FailMark, verr)
			} else {
				_, _ = fmt.Fprintf(out, "%s config: vocab size %d\n", doctor.PassMark, cfg.Train.VocabSize)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().StringVar(&sample, "sample", "", "Text to round-trip through the model")

	return cmd
}
