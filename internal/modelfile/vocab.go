package modelfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/example/go-quicktok/internal/bpe"
	xunicode "golang.org/x/text/encoding/unicode"
)

// WriteVocab writes one line per token id. Base tokens are written as
// "[tok] id" and merged tokens as "[left][right] -> [tok] id".
func WriteVocab(w io.Writer, m *bpe.Model) error {
	bw := bufio.NewWriter(w)
	for id := range int32(bpe.NumBytes) {
		tok, _ := m.TokenBytes(id)
		fmt.Fprintf(bw, "[%s] %d\n", RenderToken(tok), id)
	}
	for _, mg := range m.Merges() {
		left, _ := m.TokenBytes(mg.Pair.Left)
		right, _ := m.TokenBytes(mg.Pair.Right)
		tok, _ := m.TokenBytes(mg.ID)
		fmt.Fprintf(bw, "[%s][%s] -> [%s] %d\n", RenderToken(left), RenderToken(right), RenderToken(tok), mg.ID)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write vocab: %w", bpe.ErrIO, err)
	}
	return nil
}

// RenderToken makes token bytes printable: invalid UTF-8 becomes U+FFFD and
// control or format characters are escaped as \uXXXX.
func RenderToken(b []byte) string {
	var sb strings.Builder
	for _, r := range lossyString(b) {
		if unicode.Is(unicode.C, r) {
			fmt.Fprintf(&sb, "\\u%04x", r)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func lossyString(b []byte) string {
	out, err := xunicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\ufffd")
	}
	return string(out)
}
