package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AnyUserName/imgcrush/internal/encoder"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/AnyUserName/imgcrush/internal/pipeline"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
	"github.com/AnyUserName/imgcrush/internal/profile"
	"github.com/AnyUserName/imgcrush/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	compressCodec     string
	compressOptions   string
	compressPre       []string
	compressTarget    float64
	compressMaxRounds int
	compressMin       float64
	compressMax       float64
	compressOutDir    string
	compressSuffix    string
	compressHash      bool
	compressWorkers   int
	compressReport    string
	compressProfile   string
	compressConfig    string
	compressNoRegress bool
)

// isTerminalFn is swapped in tests.
var isTerminalFn = term.IsTerminal

var compressCmd = &cobra.Command{
	Use:   "compress [files or dirs...]",
	Short: "Compress images with fixed settings or an automatic quality search",
	Long: `Decodes each input (format is detected from its first bytes), applies
the preprocessing chain, and encodes it with the chosen codec.

--options takes relaxed JSON ('{quality: 80, lossless: false}') or the
word "auto" to search the codec's quality knob for --target distance.
--pre may be repeated: --pre 'resize:{width: 640}' --pre 'quant:{numColors: 64}'.

A single "-" input reads stdin and writes the result to stdout.

Output names: <key><suffix>[.<hash>].<ext>, next to the input or under --out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompress,
}

func init() {
	f := compressCmd.Flags()
	f.StringVarP(&compressCodec, "codec", "c", "", "output codec (see 'imgcrush codecs')")
	f.StringVarP(&compressOptions, "options", "O", "", `encoder options as relaxed JSON, or "auto"`)
	f.StringArrayVar(&compressPre, "pre", nil, "preprocessor step name[:{options}], repeatable")
	f.Float64Var(&compressTarget, "target", 0, "auto: target perceptual distance (default 1.4)")
	f.IntVar(&compressMaxRounds, "max-rounds", 0, "auto: maximum search rounds (default 6)")
	f.Float64Var(&compressMin, "min", 0, "auto: lowest-quality end of the search range")
	f.Float64Var(&compressMax, "max", 0, "auto: highest-quality end of the search range")
	f.StringVarP(&compressOutDir, "out", "o", "", "output directory (default: next to each input)")
	f.StringVar(&compressSuffix, "suffix", "", "suffix added to output names")
	f.BoolVar(&compressHash, "hash", false, "add a content hash to output names")
	f.IntVarP(&compressWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	f.StringVar(&compressReport, "report", "", "write a JSON report (.zst suffix compresses it)")
	f.StringVarP(&compressProfile, "profile", "p", profile.Default, "preset ("+strings.Join(profile.Names(), ", ")+")")
	f.StringVar(&compressConfig, "config", "", "profile file (.toml, .yaml or .jsonc) layered over --profile")
	f.BoolVar(&compressNoRegress, "no-regress-size", false, "skip outputs not smaller than their input")
	rootCmd.AddCommand(compressCmd)
}

// resolveProfile layers --config and explicit flags over the named profile.
func resolveProfile(cmd *cobra.Command) (profile.Profile, error) {
	prof, err := profile.Get(compressProfile)
	if err != nil {
		return profile.Profile{}, err
	}
	if compressConfig != "" {
		file, err := profile.Load(compressConfig)
		if err != nil {
			return profile.Profile{}, err
		}
		prof = prof.Overlay(file)
		logVerbose("config:  %s", compressConfig)
	}

	flags := cmd.Flags()
	var o profile.Profile
	if flags.Changed("codec") {
		o.Codec = compressCodec
	}
	if flags.Changed("options") {
		if strings.EqualFold(strings.TrimSpace(compressOptions), "auto") {
			o.Mode = profile.ModeAuto
		} else {
			opts, err := options.Parse(compressOptions)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("--options: %w", err)
			}
			o.Mode = profile.ModeFixed
			o.Options = opts
		}
	}
	if flags.Changed("pre") {
		for _, s := range compressPre {
			step, err := preprocess.ParseStep(s)
			if err != nil {
				return profile.Profile{}, fmt.Errorf("--pre: %w", err)
			}
			o.Pre = append(o.Pre, step)
		}
	}
	if flags.Changed("target") {
		o.Optimizer.TargetDistance = &compressTarget
	}
	if flags.Changed("max-rounds") {
		o.Optimizer.MaxRounds = &compressMaxRounds
	}
	if flags.Changed("min") {
		o.Optimizer.Min = &compressMin
	}
	if flags.Changed("max") {
		o.Optimizer.Max = &compressMax
	}
	o.Suffix = compressSuffix
	o.Hash = compressHash
	o.Workers = compressWorkers
	prof = prof.Overlay(o)

	if prof.Codec == "" {
		return profile.Profile{}, fmt.Errorf("no codec: pass --codec or use a profile that sets one")
	}
	// An auto mode from a preset or config file does not apply to a codec
	// without a tunable option; --options auto still fails in the pipeline.
	if prof.Mode == profile.ModeAuto && o.Mode != profile.ModeAuto {
		if d, err := encoder.NewRegistry().Lookup(prof.Codec); err == nil && d.AutoOptimize == nil {
			logVerbose("%s has no tunable option, using fixed mode", d.Name)
			prof.Mode = profile.ModeFixed
		}
	}
	return prof, nil
}

func modeFor(p profile.Profile) pipeline.Mode {
	if p.Mode == profile.ModeAuto {
		return pipeline.Auto{Options: p.Options, Overrides: p.Optimizer}
	}
	return pipeline.Fixed{Options: p.Options}
}

func runCompress(cmd *cobra.Command, args []string) error {
	start := time.Now()

	prof, err := resolveProfile(cmd)
	if err != nil {
		return err
	}
	logVerbose("profile: %s (codec=%s, mode=%s, options=%v, chain=%d steps)",
		prof.Name, prof.Codec, prof.Mode, prof.Options, len(prof.Pre))

	p := pipeline.New(encoder.NewRegistry(), preprocess.Default(), nil)
	mode := modeFor(prof)

	if len(args) == 1 && args[0] == "-" {
		return compressStream(p, prof, mode, os.Stdin, os.Stdout)
	}

	outDir := compressOutDir
	if outDir != "" {
		if outDir, err = filepath.Abs(outDir); err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		logVerbose("output:  %s", outDir)
	}

	runner := pipeline.NewRunner(pipeline.Config{
		Inputs:        args,
		OutputDir:     outDir,
		Suffix:        prof.Suffix,
		Hash:          prof.Hash,
		Codec:         prof.Codec,
		Mode:          mode,
		Chain:         prof.Pre,
		Profile:       prof.Name,
		Workers:       prof.Workers,
		Verbose:       verbose,
		NoRegressSize: compressNoRegress,
	}, p)

	rep, err := runner.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if compressReport != "" {
		if err := report.WriteJSON(rep, compressReport); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	printRunReport(rep, time.Since(start))
	return nil
}

// compressStream handles "-": one image from r, result to w.
func compressStream(p *pipeline.Pipeline, prof profile.Profile, mode pipeline.Mode, r io.Reader, w *os.File) error {
	if isTerminalFn(int(w.Fd())) {
		return fmt.Errorf("refusing to write binary image data to a terminal; redirect stdout")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	res, err := p.Run(pipeline.Request{Input: data, Codec: prof.Codec, Mode: mode, Chain: prof.Pre})
	if err != nil {
		return err
	}
	if _, err := w.Write(res.Output); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}

	if res.Optimized {
		logVerbose("stdin: %s %dx%d -> %s q=%v d=%.3f (%d rounds), %d -> %d bytes",
			res.SourceCodec, res.SourceWidth, res.SourceHeight, res.Codec,
			res.Quality, res.Distance, len(res.Rounds), len(data), len(res.Output))
	} else {
		logVerbose("stdin: %s %dx%d -> %s, %d -> %d bytes",
			res.SourceCodec, res.SourceWidth, res.SourceHeight, res.Codec, len(data), len(res.Output))
	}

	if compressReport != "" {
		rep := report.New(prof.Name, prof.Codec, reportMode(mode))
		rep.Entries = append(rep.Entries, pipeline.NewEntry("-", int64(len(data)), "-", res))
		if err := report.WriteJSON(rep, compressReport); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func reportMode(m pipeline.Mode) string {
	if _, ok := m.(pipeline.Auto); ok {
		return profile.ModeAuto
	}
	return profile.ModeFixed
}

func printRunReport(rep *report.Report, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║             imgcrush compress complete           ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	s := rep.Stats
	fmt.Printf("  Codec:       %s (%s)\n", rep.Codec, rep.Mode)
	fmt.Printf("  Files:       %d\n", s.TotalFiles)
	if s.Failed > 0 {
		logWarn("%d files failed", s.Failed)
	}
	fmt.Printf("  Input size:  %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(s.TotalOutputBytes))
	fmt.Printf("  Ratio:       %.1f%% of original\n", s.Ratio*100)
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	if rep.RunInfo != nil {
		fmt.Printf("  Workers:     %d\n", rep.RunInfo.Workers)
	}
	fmt.Println()

	// Top 10 heaviest inputs.
	if len(rep.Entries) > 0 {
		items := append([]report.Entry(nil), rep.Entries...)
		sort.Slice(items, func(i, j int) bool {
			return items[i].InputSize > items[j].InputSize
		})
		n := min(len(items), 10)
		fmt.Printf("  Top %d heaviest (original → compressed):\n", n)
		for _, e := range items[:n] {
			saved := float64(0)
			if e.InputSize > 0 {
				saved = (1 - float64(e.Size)/float64(e.InputSize)) * 100
			}
			q := ""
			if e.Quality != nil {
				q = fmt.Sprintf("  q=%v", *e.Quality)
			}
			fmt.Printf("    %-40s %8s → %8s  (−%.0f%%)%s\n",
				truncKey(e.Input, 40),
				formatBytes(e.InputSize),
				formatBytes(e.Size),
				saved, q,
			)
		}
		fmt.Println()
	}

	if compressReport != "" {
		fmt.Printf("  Report:      %s\n", compressReport)
		fmt.Println()
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
