package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/modelfile"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the learned vocabulary of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("%w: --limit must not be negative", bpe.ErrConfig)
			}

			m, err := modelfile.Load(cfg.Paths.ModelPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s: vocab %d, %d merges\n", cfg.Paths.ModelPath, m.VocabSize(), m.NumMerges())
			writeMergeTable(w, m, limit)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Show at most this many merges (0 = all)")

	return cmd
}

// writeMergeTable lists merged tokens in rank order.
func writeMergeTable(w io.Writer, m *bpe.Model, limit int) {
	merges := m.Merges()
	if limit > 0 && limit < len(merges) {
		merges = merges[:limit]
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"RANK", "ID", "LEFT", "RIGHT", "BYTES", "TOKEN"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, mg := range merges {
		tok, _ := m.TokenBytes(mg.ID)
		left, _ := m.TokenBytes(mg.Pair.Left)
		right, _ := m.TokenBytes(mg.Pair.Right)
		table.Append([]string{
			strconv.Itoa(mg.Rank),
			strconv.Itoa(int(mg.ID)),
			modelfile.RenderToken(left),
			modelfile.RenderToken(right),
			strconv.Itoa(len(tok)),
			modelfile.RenderToken(tok),
		})
	}
	table.Render()

	if hidden := m.NumMerges() - len(merges); hidden > 0 {
		_, _ = fmt.Fprintf(w, "... %d more\n", hidden)
	}
}
