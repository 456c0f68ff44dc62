package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/AnyUserName/imgcrush/internal/optimizer"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
	"github.com/AnyUserName/imgcrush/internal/report"
	"golang.org/x/sync/errgroup"
)

// Config holds all parameters for a batch run.
type Config struct {
	Inputs    []string
	OutputDir string // empty writes next to each input
	Suffix    string
	Hash      bool // add a content hash to output names

	Codec string
	Mode  Mode
	Chain []preprocess.Step

	Profile       string // recorded in the report
	Workers       int
	Verbose       bool
	NoRegressSize bool // skip outputs not smaller than their input
}

// Runner compresses many files, each through its own pipeline run.
type Runner struct {
	cfg  Config
	pipe *Pipeline
}

// NewRunner creates a configured batch runner.
func NewRunner(cfg Config, p *Pipeline) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Runner{cfg: cfg, pipe: p}
}

// Run processes every input and returns the report. Per-file failures
// are recorded in the report; Run fails only when every file failed or
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	if r.cfg.Verbose {
		logf("%s", r.pipe.Codecs())
	}

	// Step 1: Scan for images.
	sources, err := ScanInputs(r.cfg.Inputs)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %v", r.cfg.Inputs)
	}
	if r.cfg.Verbose {
		logf("found %d images", len(sources))
	}
	collisions := resolveCollisions(sources, r.cfg)

	// Step 2: Process images in parallel. Workers never return an error,
	// so one bad file does not cancel the others.
	results := make([]processResult, len(sources))
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			if err, ok := collisions[i]; ok {
				results[i].err = err
				return nil
			}
			if r.cfg.Verbose {
				logf("processing: %s", src.RelPath)
			}

			results[i] = processImage(src, r.cfg, r.pipe)

			if r.cfg.Verbose && results[i].err == nil && !results[i].skipped {
				e := results[i].entry
				logf("done: %s -> %s (%d -> %d bytes)", src.RelPath, e.Output, e.InputSize, e.Size)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: Collect results into the report.
	rep := report.New(r.cfg.Profile, r.cfg.Codec, modeName(r.cfg.Mode))
	rep.RunInfo = &report.RunInfo{Workers: r.cfg.Workers}
	for _, s := range r.cfg.Chain {
		rep.RunInfo.Chain = append(rep.RunInfo.Chain, s.Name)
	}
	if a, ok := r.cfg.Mode.(Auto); ok {
		rep.RunInfo.Target = optimizer.DefaultTargetDistance
		rep.RunInfo.MaxRounds = optimizer.DefaultMaxRounds
		if v := a.Overrides.TargetDistance; v != nil {
			rep.RunInfo.Target = *v
		}
		if v := a.Overrides.MaxRounds; v != nil {
			rep.RunInfo.MaxRounds = *v
		}
	}

	var skipped int
	for i, res := range results {
		switch {
		case res.err != nil:
			rep.Failures = append(rep.Failures, report.Failure{
				Input: sources[i].AbsPath,
				Error: res.err.Error(),
			})
		case res.skipped:
			skipped++
		default:
			rep.Entries = append(rep.Entries, res.entry)
		}
	}

	// Report errors but don't fail the entire run for partial failures.
	if n := len(rep.Failures); n > 0 {
		for _, f := range rep.Failures {
			fmt.Fprintf(os.Stderr, "[imgcrush] error: %s\n", f.Error)
		}
		if n == len(sources) {
			return nil, fmt.Errorf("all %d images failed to process", n)
		}
		fmt.Fprintf(os.Stderr, "[imgcrush] warning: %d of %d images had errors\n", n, len(sources))
	}
	if skipped > 0 && r.cfg.Verbose {
		logf("skipped %d outputs larger than their input", skipped)
	}

	rep.ComputeStats()
	return rep, nil
}

func modeName(m Mode) string {
	if _, ok := m.(Auto); ok {
		return "auto"
	}
	return "fixed"
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[imgcrush] "+format+"\n", args...)
}
