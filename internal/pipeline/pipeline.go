// Package pipeline runs the compression pipeline for a single image:
// detect and decode, apply the preprocessing chain, then encode with
// fixed options or a quality search. batch.go runs it over many files.
package pipeline

import (
	"fmt"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/codec"
	"github.com/AnyUserName/imgcrush/internal/metric"
	"github.com/AnyUserName/imgcrush/internal/optimizer"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
)

// Mode selects how the target codec encodes. It is either Fixed or Auto.
type Mode interface {
	isMode()
}

// Fixed encodes once with Options merged over the codec's defaults.
type Fixed struct {
	Options options.Options
}

// Auto searches the codec's tunable option for the target distance.
// Options are merged over the codec's defaults and held fixed while the
// tuned option varies.
type Auto struct {
	Options   options.Options
	Overrides optimizer.Overrides
}

func (Fixed) isMode() {}
func (Auto) isMode()  {}

// Pipeline is safe for concurrent use; every Run gets its own session.
type Pipeline struct {
	codecs        *codec.Registry
	preprocessors *preprocess.Registry
	metric        optimizer.Metric
}

// New creates a pipeline. A nil metric selects metric.SSIM.
func New(codecs *codec.Registry, preprocessors *preprocess.Registry, m optimizer.Metric) *Pipeline {
	if m == nil {
		m = metric.SSIM{}
	}
	return &Pipeline{codecs: codecs, preprocessors: preprocessors, metric: m}
}

// Codecs returns the pipeline's codec registry.
func (p *Pipeline) Codecs() *codec.Registry { return p.codecs }

// Request describes one compression.
type Request struct {
	Input []byte
	Codec string
	// Mode defaults to Fixed with the codec's default options.
	Mode  Mode
	Chain []preprocess.Step
}

// Result is the output of Run.
type Result struct {
	Output []byte
	// Codec is the target codec's registered name; Extension its file
	// extension.
	Codec     string
	Extension string

	SourceCodec  string
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int

	// Options are the effective encoder options, including the searched
	// value in auto mode.
	Options options.Options

	// Optimized is set in auto mode, with the chosen Quality, its
	// Distance and every round measured.
	Optimized bool
	Quality   float64
	Distance  float64
	Rounds    []optimizer.Round
}

// Compress runs the pipeline and returns only the encoded bytes.
func (p *Pipeline) Compress(buf []byte, codecName string, mode Mode, chain []preprocess.Step) ([]byte, error) {
	res, err := p.Run(Request{Input: buf, Codec: codecName, Mode: mode, Chain: chain})
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Run executes decode → preprocess → encode. Errors from any stage are
// returned as-is, wrapped with the codec error category.
func (p *Pipeline) Run(req Request) (*Result, error) {
	target, err := p.codecs.Lookup(req.Codec)
	if err != nil {
		return nil, err
	}
	s := newSession()

	src, srcName, err := p.decode(s, req.Input)
	if err != nil {
		return nil, err
	}
	b, err := p.preprocessors.Apply(src, req.Chain)
	if err != nil {
		return nil, err
	}

	enc, err := s.encoder(target)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Codec:        target.Name,
		Extension:    target.Extension,
		SourceCodec:  srcName,
		SourceWidth:  src.Width,
		SourceHeight: src.Height,
	}

	switch m := req.Mode.(type) {
	case nil:
		err = p.encodeFixed(res, target, enc, b, nil)
	case Fixed:
		err = p.encodeFixed(res, target, enc, b, m.Options)
	case Auto:
		err = p.encodeAuto(res, s, target, enc, b, m)
	default:
		err = fmt.Errorf("pipeline: unsupported mode %T", m)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetImageSize detects and decodes buf and reports its dimensions. No
// encoder is acquired.
func (p *Pipeline) GetImageSize(buf []byte) (width, height int, err error) {
	b, _, err := p.decode(newSession(), buf)
	if err != nil {
		return 0, 0, err
	}
	return b.Width, b.Height, nil
}

// Detect returns the name of the codec that recognizes buf.
func (p *Pipeline) Detect(buf []byte) (string, error) {
	return p.codecs.Detect(buf)
}

func (p *Pipeline) decode(s *session, buf []byte) (*bitmap.Bitmap, string, error) {
	name, err := p.codecs.Detect(buf)
	if err != nil {
		return nil, "", err
	}
	d, err := p.codecs.Lookup(name)
	if err != nil {
		return nil, "", err
	}
	dec, err := s.decoder(d)
	if err != nil {
		return nil, "", err
	}
	b, err := dec.Decode(buf)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", codec.ErrDecode, name, err)
	}
	if err := b.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", codec.ErrDecode, name, err)
	}
	return b, name, nil
}

func (p *Pipeline) encodeFixed(res *Result, d *codec.Descriptor, enc codec.Encoder, b *bitmap.Bitmap, opts options.Options) error {
	merged := options.Merge(d.DefaultOptions, opts)
	out, err := enc.Encode(b.Pix, b.Width, b.Height, merged)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", codec.ErrEncode, d.Name, err)
	}
	res.Output = out
	res.Width, res.Height = b.Width, b.Height
	res.Options = merged
	return nil
}

func (p *Pipeline) encodeAuto(res *Result, s *session, d *codec.Descriptor, enc codec.Encoder, b *bitmap.Bitmap, m Auto) error {
	auto := d.AutoOptimize
	if auto == nil {
		return fmt.Errorf("%w: %s", codec.ErrNotOptimizable, d.Name)
	}
	// Rounds are decoded with the target codec, not the source one.
	dec, err := s.decoder(d)
	if err != nil {
		return err
	}

	base := options.Merge(d.DefaultOptions, m.Options)
	tuned := func(q float64) options.Options {
		var v any = q
		if auto.Integer {
			v = int(q)
		}
		return options.Merge(base, options.Options{auto.Option: v})
	}
	encode := func(b *bitmap.Bitmap, q float64) ([]byte, error) {
		return enc.Encode(b.Pix, b.Width, b.Height, tuned(q))
	}

	best, err := optimizer.Search(b, encode, dec.Decode, p.metric, m.Overrides.Apply(optimizer.ConfigFor(auto)))
	if err != nil {
		return fmt.Errorf("%s: optimize %s: %w", d.Name, auto.Option, err)
	}
	res.Output = best.Binary
	res.Width, res.Height = best.Bitmap.Width, best.Bitmap.Height
	res.Options = tuned(best.Quality)
	res.Optimized = true
	res.Quality = best.Quality
	res.Distance = best.Distance
	res.Rounds = best.Rounds
	return nil
}
