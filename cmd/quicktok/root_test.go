package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/example/go-quicktok/internal/config"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(bytes.NewBufferString(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.Execute()

	return out.String(), errOut.String(), err
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"train", "encode", "decode", "inspect", "bench", "doctor"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "corpus", "model", "vocab-size", "threads", "log-level"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	// Zero-value config has empty Paths.ModelPath → requireConfig returns error.
	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{
		Paths: config.PathsConfig{ModelPath: "/some/model/path"},
	}

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Paths.ModelPath != "/some/model/path" {
		t.Errorf("unexpected ModelPath: %q", got.Paths.ModelPath)
	}
}

func TestPersistentPreRun_SetsLogLevel(t *testing.T) {
	_, stderr, err := execute(t, "", "--log-level", "debug", "doctor", "--model", "/nonexistent/tok.model")
	if err == nil {
		t.Fatal("expected doctor to fail for a missing model")
	}

	if !strings.Contains(stderr, "FAIL: model") {
		t.Errorf("stderr should list the model failure, got:\n%s", stderr)
	}

	if activeCfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", activeCfg.LogLevel)
	}
}
