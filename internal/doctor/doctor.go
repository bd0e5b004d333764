// Package doctor provides environment preflight checks for quicktok.
package doctor

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/example/go-quicktok/internal/bpe"
	"github.com/example/go-quicktok/internal/modelfile"
	"golang.org/x/sys/cpu"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// DefaultSample is the text round-tripped through the model when Config.Sample is empty.
const DefaultSample = "Hello, wörld! 123 tokens\n"

// CPUInfo describes the host as far as training throughput is concerned.
type CPUInfo struct {
	NumCPU   int
	Features []string
}

// HostCPU reports runtime.NumCPU and the SIMD features detected by x/sys/cpu.
func HostCPU() CPUInfo {
	info := CPUInfo{NumCPU: runtime.NumCPU()}
	add := func(name string, ok bool) {
		if ok {
			info.Features = append(info.Features, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add("sse4.2", cpu.X86.HasSSE42)
		add("avx2", cpu.X86.HasAVX2)
		add("avx512f", cpu.X86.HasAVX512F)
		add("bmi2", cpu.X86.HasBMI2)
	case "arm64":
		add("asimd", cpu.ARM64.HasASIMD)
		add("sve", cpu.ARM64.HasSVE)
	}
	return info
}

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// CPU returns host information. Defaults to HostCPU.
	CPU func() CPUInfo
	// Threads is the configured training thread count.
	Threads int
	// CorpusPath, when set, must name a readable, non-empty file.
	CorpusPath string
	// ModelPath, when set, must load as a quicktok model.
	ModelPath string
	// Sample is round-tripped through the loaded model.
	Sample string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- host -------------------------------------------------------------
	cpuFn := cfg.CPU
	if cpuFn == nil {
		cpuFn = HostCPU
	}
	info := cpuFn()
	features := "none detected"
	if len(info.Features) > 0 {
		features = strings.Join(info.Features, " ")
	}
	fmt.Fprintf(w, "%s cpu: %d logical cores, %s/%s, features: %s\n",
		PassMark, info.NumCPU, runtime.GOOS, runtime.GOARCH, features)

	// ---- threads ----------------------------------------------------------
	switch {
	case cfg.Threads < 1:
		res.fail(fmt.Sprintf("threads: must be >= 1, got %d", cfg.Threads))
		fmt.Fprintf(w, "%s threads: %d is not a valid worker count\n", FailMark, cfg.Threads)
	case info.NumCPU > 0 && cfg.Threads > info.NumCPU:
		fmt.Fprintf(w, "%s threads: %d (exceeds %d cores, extra workers will time-share)\n",
			PassMark, cfg.Threads, info.NumCPU)
	default:
		fmt.Fprintf(w, "%s threads: %d\n", PassMark, cfg.Threads)
	}

	// ---- corpus -----------------------------------------------------------
	if cfg.CorpusPath == "" {
		fmt.Fprintf(w, "%s corpus: skipped\n", PassMark)
	} else if err := checkCorpus(cfg.CorpusPath); err != nil {
		res.fail(fmt.Sprintf("corpus %q: %v", cfg.CorpusPath, err))
		fmt.Fprintf(w, "%s corpus %s: %v\n", FailMark, cfg.CorpusPath, err)
	} else {
		fmt.Fprintf(w, "%s corpus: %s\n", PassMark, cfg.CorpusPath)
	}

	// ---- model ------------------------------------------------------------
	if cfg.ModelPath == "" {
		fmt.Fprintf(w, "%s model: skipped\n", PassMark)
		return res
	}
	m, err := modelfile.Load(cfg.ModelPath)
	if err != nil {
		res.fail(fmt.Sprintf("model %q: %v", cfg.ModelPath, err))
		fmt.Fprintf(w, "%s model %s: %v\n", FailMark, cfg.ModelPath, err)
		return res
	}
	fmt.Fprintf(w, "%s model: %s (vocab %d, %d merges)\n",
		PassMark, cfg.ModelPath, m.VocabSize(), m.NumMerges())

	sample := cfg.Sample
	if sample == "" {
		sample = DefaultSample
	}
	if err := checkRoundTrip(m, sample); err != nil {
		res.fail(fmt.Sprintf("round trip: %v", err))
		fmt.Fprintf(w, "%s round trip: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s round trip: %d bytes -> %d tokens\n",
			PassMark, len(sample), len(m.Encode(sample)))
	}

	return res
}

func checkCorpus(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if st.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func checkRoundTrip(m *bpe.Model, sample string) error {
	got, err := m.Decode(m.Encode(sample))
	if err != nil {
		return err
	}
	if got != sample {
		return fmt.Errorf("decoded %q, want %q", got, sample)
	}
	return nil
}
