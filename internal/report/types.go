// Package report defines the JSON record of a compression run.
package report

// Report is the top-level output of an imgcrush run.
type Report struct {
	Version     int       `json:"version"`
	RunID       string    `json:"run_id"`
	GeneratedAt string    `json:"generated_at"`
	Profile     string    `json:"profile,omitempty"`
	Codec       string    `json:"codec"`
	Mode        string    `json:"mode"` // "fixed" or "auto"
	RunInfo     *RunInfo  `json:"run_info,omitempty"`
	Entries     []Entry   `json:"entries"`
	Failures    []Failure `json:"failures,omitempty"`
	Stats       Stats     `json:"stats"`
}

// RunInfo captures run parameters for diagnostics.
type RunInfo struct {
	Workers   int      `json:"workers"`
	Chain     []string `json:"chain,omitempty"` // preprocessor names in order
	Target    float64  `json:"target_distance,omitempty"`
	MaxRounds int      `json:"max_rounds,omitempty"`
}

// Entry describes one input file and the output written for it.
type Entry struct {
	Input        string `json:"input"`
	InputSize    int64  `json:"input_size"`
	SourceCodec  string `json:"source_codec"`
	SourceWidth  int    `json:"source_width"`
	SourceHeight int    `json:"source_height"`

	Output string `json:"output"` // "-" for stdout
	Codec  string `json:"codec"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"` // bytes written
	Hash   string `json:"hash"` // first 16 hex chars of xxhash64

	Options  map[string]any `json:"options"`
	Quality  *float64       `json:"quality,omitempty"`  // auto mode only
	Distance *float64       `json:"distance,omitempty"` // auto mode only
	Rounds   int            `json:"rounds,omitempty"`
}

// Failure records a file the run could not compress.
type Failure struct {
	Input string `json:"input"`
	Error string `json:"error"`
}

// Stats aggregates run metrics.
type Stats struct {
	TotalInputBytes  int64   `json:"total_input_bytes"`
	TotalOutputBytes int64   `json:"total_output_bytes"`
	TotalFiles       int     `json:"total_files"`
	Failed           int     `json:"failed,omitempty"`
	Ratio            float64 `json:"ratio"` // output / input
}

// SupportedVersion is the current schema version.
const SupportedVersion = 1
