package cmd

import (
	"fmt"
	"os"

	"github.com/AnyUserName/imgcrush/internal/encoder"
	"github.com/AnyUserName/imgcrush/internal/pipeline"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size <file>...",
	Short: "Print the dimensions and detected codec of images",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSize,
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	p := pipeline.New(encoder.NewRegistry(), preprocess.Default(), nil)
	out := cmd.OutOrStdout()

	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			logWarn("%v", err)
			failed++
			continue
		}
		name, err := p.Detect(data)
		if err != nil {
			logWarn("%s: %v", path, err)
			failed++
			continue
		}
		w, h, err := p.GetImageSize(data)
		if err != nil {
			logWarn("%s: %v", path, err)
			failed++
			continue
		}
		if len(args) == 1 {
			fmt.Fprintf(out, "%dx%d %s\n", w, h, name)
		} else {
			fmt.Fprintf(out, "%s: %dx%d %s\n", path, w, h, name)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read", failed, len(args))
	}
	return nil
}
