package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnyUserName/imgcrush/internal/hasher"
	"github.com/AnyUserName/imgcrush/internal/report"
)

// validateReport checks report consistency and that every output on disk
// still matches its recorded size and content hash.
func validateReport(r *report.Report) []string {
	var errs []string

	// Check version.
	if r.Version != report.SupportedVersion {
		errs = append(errs, fmt.Sprintf("unsupported report version: %d", r.Version))
	}

	seenPaths := map[string]bool{}
	for i, e := range r.Entries {
		if e.Width <= 0 || e.Height <= 0 {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: invalid dimensions %dx%d", i, e.Input, e.Width, e.Height))
		}
		if e.Hash == "" {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: missing hash", i, e.Input))
		}
		if e.Output == "" {
			errs = append(errs, fmt.Sprintf("entry[%d] %q: missing output", i, e.Input))
			continue
		}
		if e.Output == "-" {
			continue // written to stdout
		}

		// Check duplicate paths.
		if seenPaths[e.Output] {
			errs = append(errs, fmt.Sprintf("entry[%d]: duplicate output %q", i, e.Output))
		}
		seenPaths[e.Output] = true

		f, err := os.Open(filepath.FromSlash(e.Output))
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry[%d]: output not found: %s", i, e.Output))
			continue
		}
		info, err := f.Stat()
		if err == nil && e.Size > 0 && info.Size() != e.Size {
			errs = append(errs, fmt.Sprintf("entry[%d] %s: size mismatch: report=%d, disk=%d",
				i, e.Output, e.Size, info.Size()))
		}
		sum, err := hasher.ContentHashReader(f, len(e.Hash))
		f.Close()
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry[%d] %s: read: %v", i, e.Output, err))
		} else if e.Hash != "" && sum != e.Hash {
			errs = append(errs, fmt.Sprintf("entry[%d] %s: hash mismatch: report=%s, disk=%s",
				i, e.Output, e.Hash, sum))
		}
	}

	// Verify stats consistency.
	if r.Stats.TotalFiles != len(r.Entries) {
		errs = append(errs, fmt.Sprintf("stats.total_files mismatch: %d != %d", r.Stats.TotalFiles, len(r.Entries)))
	}
	var out int64
	for _, e := range r.Entries {
		out += e.Size
	}
	if r.Stats.TotalOutputBytes != out {
		errs = append(errs, fmt.Sprintf("stats.total_output_bytes mismatch: %d != %d", r.Stats.TotalOutputBytes, out))
	}

	return errs
}
