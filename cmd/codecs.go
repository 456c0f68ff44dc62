package cmd

import (
	"fmt"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/AnyUserName/imgcrush/internal/encoder"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var codecsCmd = &cobra.Command{
	Use:   "codecs",
	Short: "List codecs and preprocessors with their default options",
	Args:  cobra.NoArgs,
	RunE:  runCodecs,
}

func init() {
	rootCmd.AddCommand(codecsCmd)
}

// externalTools lists codecs whose capabilities depend on binaries in PATH.
var externalTools = map[string][]string{
	"avif": {"avifenc", "avifdec"},
}

func runCodecs(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "CODEC\tEXT\tAUTO\tDEFAULTS\tSTATUS")
	for _, d := range encoder.NewRegistry().Descriptors() {
		auto := "-"
		if a := d.AutoOptimize; a != nil {
			auto = fmt.Sprintf("%s %v..%v", a.Option, a.Min, a.Max)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.Name, d.Extension, auto, formatOptions(d.DefaultOptions), toolStatus(d.Name))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "PREPROCESSOR\tDEFAULTS\tDESCRIPTION")
	for _, p := range preprocess.Default().List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, formatOptions(p.DefaultOptions), p.Description)
	}
	return tw.Flush()
}

func formatOptions(o options.Options) string {
	if len(o) == 0 {
		return "{}"
	}
	keys := o.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, o[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func toolStatus(name string) string {
	for _, tool := range externalTools[name] {
		if _, err := exec.LookPath(tool); err != nil {
			return color.YellowString("%s not in PATH", tool)
		}
	}
	return color.GreenString("ok")
}
