package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/tokenizer"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var (
		text      string
		lines     bool
		cacheSize int
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text to token ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readInputText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var opts []tokenizer.Option
			if lines {
				opts = append(opts, tokenizer.WithCache(cacheSize))
			}
			tok, err := tokenizer.NewBPETokenizer(cfg.Paths.ModelPath, opts...)
			if err != nil {
				return err
			}

			segments := []string{input}
			if lines {
				segments = strings.Split(strings.TrimSuffix(input, "\n"), "\n")
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, seg := range segments {
				ids, err := tok.Encode(seg)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(w, formatIDs(ids))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to encode (default: read stdin)")
	cmd.Flags().BoolVar(&lines, "lines", false, "Encode each input line separately, one output line per input line")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 4096, "Distinct lines to keep encodings for with --lines")

	return cmd
}

func newDecodeCmd() *cobra.Command {
	var lossy bool

	cmd := &cobra.Command{
		Use:   "decode [ids...]",
		Short: "Decode token ids to text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			fields := args
			if len(fields) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				fields = strings.Fields(string(b))
			}
			ids, err := parseIDs(fields)
			if err != nil {
				return err
			}

			tok, err := tokenizer.NewBPETokenizer(cfg.Paths.ModelPath)
			if err != nil {
				return err
			}

			var out string
			if lossy {
				out, err = tok.DecodeLossy(ids)
			} else {
				out, err = tok.Decode(ids)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&lossy, "lossy", false, "Replace invalid UTF-8 with U+FFFD instead of failing")

	return cmd
}

// readInputText returns text when set, otherwise all of stdin. Unlike
// decoding, surrounding whitespace is significant and kept.
func readInputText(text string, stdin io.Reader) (string, error) {
	if text != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: either provide --text or pipe text on stdin", bpe.ErrInput)
	}
	return string(b), nil
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " ")
}

func parseIDs(fields []string) ([]int64, error) {
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		for _, s := range strings.Split(f, ",") {
			if s == "" {
				continue
			}
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: token %q: %w", bpe.ErrDecode, s, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
