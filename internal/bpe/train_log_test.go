package bpe

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/example/go-quicktok/internal/testutil"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.records = append(c.records, r)
	return nil
}
func (c *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(name string) slog.Handler       { return c }

func (c *capturingHandler) byMessage(msg string) []map[string]string {
	var out []map[string]string
	for _, r := range c.records {
		if r.Message != msg {
			continue
		}
		m := make(map[string]string)
		r.Attrs(func(a slog.Attr) bool {
			m[a.Key] = fmt.Sprint(a.Value.Any())
			return true
		})
		out = append(out, m)
	}
	return out
}

func TestTrain_LogsProgress(t *testing.T) {
	h := &capturingHandler{}

	tr, err := NewTrainer(1, WithLogger(slog.New(h)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Train(context.Background(), testutil.TinyCorpus, 259); err != nil {
		t.Fatalf("Train: %v", err)
	}

	started := h.byMessage("bpe training started")
	if len(started) != 1 || started[0]["bytes"] != "11" || started[0]["vocab_size"] != "259" {
		t.Errorf("start record = %v", started)
	}

	merges := h.byMessage("bpe merge")
	if len(merges) != 3 {
		t.Fatalf("want 3 merge records, got %d", len(merges))
	}
	if merges[0]["pair"] != "(97, 97)" || merges[0]["count"] != "4" || merges[2]["tokens"] != "5" {
		t.Errorf("merge records = %v", merges)
	}

	finished := h.byMessage("bpe training finished")
	if len(finished) != 1 || finished[0]["merges"] != "3" || finished[0]["stopped_early"] != "false" {
		t.Errorf("finish record = %v", finished)
	}
}

func TestTrain_LogsAbortState(t *testing.T) {
	h := &capturingHandler{}

	tr, err := NewTrainer(1, WithLogger(slog.New(h)))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tr.Train(ctx, testutil.TinyCorpus, 300); err == nil {
		t.Fatal("expected error for cancelled context")
	}

	aborted := h.byMessage("bpe training aborted")
	if len(aborted) != 1 || aborted[0]["state"] != "counting-pairs" {
		t.Errorf("abort record = %v", aborted)
	}
}
