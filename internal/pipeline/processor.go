package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/imgcrush/internal/hasher"
	"github.com/AnyUserName/imgcrush/internal/report"
)

// processResult holds the result of processing a single source image.
type processResult struct {
	entry   report.Entry
	err     error
	skipped bool // output larger than input, not written
}

// processImage handles a single source image: read, run the pipeline,
// name the output by content and write it.
func processImage(src Source, cfg Config, p *Pipeline) processResult {
	var result processResult

	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		result.err = fmt.Errorf("read %s: %w", src.RelPath, err)
		return result
	}

	res, err := p.Run(Request{Input: data, Codec: cfg.Codec, Mode: cfg.Mode, Chain: cfg.Chain})
	if err != nil {
		result.err = fmt.Errorf("%s: %w", src.RelPath, err)
		return result
	}

	if cfg.NoRegressSize && len(res.Output) >= len(data) {
		if cfg.Verbose {
			logf("skip: %s: encoded %d >= original %d bytes", src.RelPath, len(res.Output), len(data))
		}
		result.skipped = true
		return result
	}

	outPath, err := OutputPath(src, cfg, res)
	if err != nil {
		result.err = err
		return result
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		result.err = fmt.Errorf("mkdir for %s: %w", src.RelPath, err)
		return result
	}
	if err := os.WriteFile(outPath, res.Output, 0o644); err != nil {
		result.err = fmt.Errorf("write %s: %w", outPath, err)
		return result
	}

	result.entry = NewEntry(src.AbsPath, int64(len(data)), filepath.ToSlash(outPath), res)
	return result
}

// OutputPath names the output for src: the source key, then the suffix,
// then (with cfg.Hash) the first 8 hex chars of the content hash, then
// the codec's extension. Outputs go under cfg.OutputDir, or next to the
// source when it is empty. Overwriting the source is refused.
func OutputPath(src Source, cfg Config, res *Result) (string, error) {
	out := outputStem(src, cfg)
	if cfg.Hash {
		out += "." + hasher.ContentHash(res.Output, 8)
	}
	out += "." + res.Extension

	if same, _ := samePath(out, src.AbsPath); same {
		return "", fmt.Errorf("%s: output would overwrite the input; set a suffix or an output directory", src.RelPath)
	}
	return out, nil
}

// outputStem is the output path up to the hash and extension.
func outputStem(src Source, cfg Config) string {
	name := filepath.Base(filepath.FromSlash(src.Key)) + cfg.Suffix
	if cfg.OutputDir == "" {
		return filepath.Join(filepath.Dir(src.AbsPath), name)
	}
	return filepath.Join(cfg.OutputDir, filepath.Dir(filepath.FromSlash(src.Key)), name)
}

// resolveCollisions gives sources whose keys map to the same output, such
// as a.png and a.jpg, their source extension in the key (a.png.webp and
// a.jpg.webp). Sources that still collide after that are returned as
// failures, keyed by index; the first source of each group keeps the name.
func resolveCollisions(sources []Source, cfg Config) map[int]error {
	group := func() map[string][]int {
		m := make(map[string][]int)
		for i, s := range sources {
			stem := outputStem(s, cfg)
			if abs, err := filepath.Abs(stem); err == nil {
				stem = abs
			}
			// Case-insensitive filesystems fold A.png and a.jpg together.
			stem = strings.ToLower(stem)
			m[stem] = append(m[stem], i)
		}
		return m
	}

	for _, idx := range group() {
		if len(idx) < 2 {
			continue
		}
		for _, i := range idx {
			sources[i].Key += filepath.Ext(sources[i].RelPath)
		}
	}

	failed := make(map[int]error)
	for _, idx := range group() {
		for _, i := range idx[1:] {
			failed[i] = fmt.Errorf("%s: output name collides with %s", sources[i].RelPath, sources[idx[0]].AbsPath)
		}
	}
	return failed
}

func samePath(a, b string) (bool, error) {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return aa == bb, nil
}

// NewEntry builds a report entry for one pipeline result.
func NewEntry(input string, inputSize int64, output string, res *Result) report.Entry {
	e := report.Entry{
		Input:        input,
		InputSize:    inputSize,
		SourceCodec:  res.SourceCodec,
		SourceWidth:  res.SourceWidth,
		SourceHeight: res.SourceHeight,
		Output:       output,
		Codec:        res.Codec,
		Width:        res.Width,
		Height:       res.Height,
		Size:         int64(len(res.Output)),
		Hash:         hasher.ContentHash(res.Output, 16),
		Options:      res.Options,
	}
	if res.Optimized {
		q, d := res.Quality, res.Distance
		e.Quality = &q
		e.Distance = &d
		e.Rounds = len(res.Rounds)
	}
	return e
}
