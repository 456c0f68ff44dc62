package cmd

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/imgcrush/internal/report"
	"github.com/spf13/cobra"
)

var statsVerify bool

var statsCmd = &cobra.Command{
	Use:   "stats <report>",
	Short: "Display statistics for a compression report",
	Long: `Summarizes a report written by 'imgcrush compress --report'. Plain and
zstd-compressed reports are both accepted.

--verify also checks every output still exists with the recorded size and
content hash.`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsVerify, "verify", false, "re-hash outputs and check them against the report")
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	rep, err := report.Read(args[0])
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	printStats(rep)

	if !statsVerify {
		return nil
	}
	errs := validateReport(rep)
	if len(errs) == 0 {
		fmt.Println("  ✓ Report is valid")
		fmt.Printf("  ✓ %d outputs present, sizes and hashes match\n", len(rep.Entries))
		return nil
	}
	fmt.Printf("  ✗ Report has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("verification failed with %d errors", len(errs))
}

func printStats(r *report.Report) {
	fmt.Println()
	fmt.Printf("  Report version:   %d\n", r.Version)
	fmt.Printf("  Run:              %s\n", r.RunID)
	fmt.Printf("  Generated:        %s\n", r.GeneratedAt)
	if r.Profile != "" {
		fmt.Printf("  Profile:          %s\n", r.Profile)
	}
	fmt.Printf("  Codec:            %s (%s)\n", r.Codec, r.Mode)
	if ri := r.RunInfo; ri != nil {
		fmt.Printf("  Workers:          %d\n", ri.Workers)
		if len(ri.Chain) > 0 {
			fmt.Printf("  Preprocessors:    %v\n", ri.Chain)
		}
		if r.Mode == "auto" {
			fmt.Printf("  Target distance:  %v (max %d rounds)\n", ri.Target, ri.MaxRounds)
		}
	}
	fmt.Println()

	s := r.Stats
	fmt.Printf("  Files:            %d\n", s.TotalFiles)
	if s.Failed > 0 {
		fmt.Printf("  Failed:           %d\n", s.Failed)
	}
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		fmt.Printf("  Compression:      %.1f%% of original\n", s.Ratio*100)
	}
	fmt.Println()

	// Per-source-format breakdown.
	type agg struct {
		count   int
		in, out int64
	}
	bySource := map[string]agg{}
	for _, e := range r.Entries {
		a := bySource[e.SourceCodec]
		a.count++
		a.in += e.InputSize
		a.out += e.Size
		bySource[e.SourceCodec] = a
	}
	var sources []string
	for k := range bySource {
		sources = append(sources, k)
	}
	sort.Strings(sources)
	if len(sources) > 0 {
		fmt.Println("  Source format breakdown:")
		for _, k := range sources {
			a := bySource[k]
			fmt.Printf("    %-6s  %4d files  %9s → %9s\n", k, a.count, formatBytes(a.in), formatBytes(a.out))
		}
		fmt.Println()
	}

	// Quality distribution in auto mode.
	var qs []float64
	var rounds int
	for _, e := range r.Entries {
		if e.Quality != nil {
			qs = append(qs, *e.Quality)
			rounds += e.Rounds
		}
	}
	if len(qs) > 0 {
		sort.Float64s(qs)
		fmt.Printf("  Chosen quality:   min %v  median %v  max %v\n", qs[0], qs[len(qs)/2], qs[len(qs)-1])
		fmt.Printf("  Search rounds:    %.1f per file\n", float64(rounds)/float64(len(qs)))
		fmt.Println()
	}

	// Warnings.
	var warnings []string
	for _, e := range r.Entries {
		if e.Size >= e.InputSize && e.InputSize > 0 {
			warnings = append(warnings, fmt.Sprintf("%s grew: %d → %d bytes", e.Input, e.InputSize, e.Size))
		}
	}
	for _, f := range r.Failures {
		warnings = append(warnings, fmt.Sprintf("%s failed: %s", f.Input, f.Error))
	}
	if len(warnings) > 0 {
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
		fmt.Println()
	}
}
