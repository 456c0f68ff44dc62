package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "imgcrush",
	Short: "Codec-agnostic image compressor with automatic quality search",
	Long: `imgcrush decodes any supported image, runs an optional chain of
preprocessors (resize, rotate, quant, blur), and re-encodes it as JPEG,
WebP, AVIF, PNG, GIF, BMP or TIFF.

Encoder settings are either given explicitly or found automatically:
--options auto searches the codec's quality knob for the smallest output
that stays within a perceptual distance of the original.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error in red. An interrupt
// cancels the run between files.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("imgcrush: %v", err))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgcrush %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[imgcrush] "+format+"\n", args...)
	}
}

// logWarn always prints, highlighted.
func logWarn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.YellowString("[imgcrush] warning: "+format, args...))
}
