// Package optimizer searches an encoder's quality knob for the value whose
// output lands closest to a target perceptual distance.
//
// The search bisects the knob's range: a round whose round-tripped image
// is further from the original than the target moves the range towards
// higher quality, otherwise towards lower quality. Codecs are not
// guaranteed to be monotonic in their knob, so the best round seen is
// kept rather than the last one.
package optimizer

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/codec"
)

const (
	DefaultTargetDistance = 1.4
	DefaultMaxRounds      = 6

	// SignificantDigits is the precision of the reported quality.
	SignificantDigits = 5
)

// ErrInvalidConfig is returned for configurations the search cannot run.
var ErrInvalidConfig = errors.New("optimizer: invalid config")

// Metric measures the perceptual distance between two bitmaps of equal
// size. Larger means more visibly different.
type Metric interface {
	Distance(a, b *bitmap.Bitmap) (float64, error)
}

// MetricFunc adapts a function to Metric.
type MetricFunc func(a, b *bitmap.Bitmap) (float64, error)

func (f MetricFunc) Distance(a, b *bitmap.Bitmap) (float64, error) { return f(a, b) }

// EncodeFunc encodes b with the tuned option set to quality.
type EncodeFunc func(b *bitmap.Bitmap, quality float64) ([]byte, error)

// DecodeFunc decodes the output of an EncodeFunc.
type DecodeFunc func(data []byte) (*bitmap.Bitmap, error)

// Config bounds a search. Min is the lowest-quality end of the knob and
// Max the highest; Min > Max is allowed.
type Config struct {
	TargetDistance float64
	MaxRounds      int
	Min            float64
	Max            float64
	// Step is the resolution of the knob; the search stops once the
	// range is narrower. Zero means 1.
	Step    float64
	Integer bool
}

// ConfigFor returns the default config for a codec's tunable option.
func ConfigFor(a *codec.AutoOptimize) Config {
	return Config{
		TargetDistance: DefaultTargetDistance,
		MaxRounds:      DefaultMaxRounds,
		Min:            a.Min,
		Max:            a.Max,
		Step:           a.Step,
		Integer:        a.Integer,
	}
}

// Overrides holds caller-supplied replacements for Config fields.
// Nil fields keep the base value.
type Overrides struct {
	TargetDistance *float64 `json:"target_distance,omitempty" toml:"target_distance" yaml:"target_distance"`
	MaxRounds      *int     `json:"max_rounds,omitempty" toml:"max_rounds" yaml:"max_rounds"`
	Min            *float64 `json:"min,omitempty" toml:"min" yaml:"min"`
	Max            *float64 `json:"max,omitempty" toml:"max" yaml:"max"`
}

// Apply layers o over base.
func (o Overrides) Apply(base Config) Config {
	if o.TargetDistance != nil {
		base.TargetDistance = *o.TargetDistance
	}
	if o.MaxRounds != nil {
		base.MaxRounds = *o.MaxRounds
	}
	if o.Min != nil {
		base.Min = *o.Min
	}
	if o.Max != nil {
		base.Max = *o.Max
	}
	return base
}

// Merge returns o with any nil field filled from fallback.
func (o Overrides) Merge(fallback Overrides) Overrides {
	if o.TargetDistance == nil {
		o.TargetDistance = fallback.TargetDistance
	}
	if o.MaxRounds == nil {
		o.MaxRounds = fallback.MaxRounds
	}
	if o.Min == nil {
		o.Min = fallback.Min
	}
	if o.Max == nil {
		o.Max = fallback.Max
	}
	return o
}

func (c Config) validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("%w: max rounds %d < 1", ErrInvalidConfig, c.MaxRounds)
	}
	for _, v := range []float64{c.TargetDistance, c.Min, c.Max, c.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value %v", ErrInvalidConfig, v)
		}
	}
	if c.Step < 0 {
		return fmt.Errorf("%w: negative step %v", ErrInvalidConfig, c.Step)
	}
	return nil
}

// Round records one encode/decode/measure cycle.
type Round struct {
	Quality  float64
	Distance float64
	Size     int
}

// Result is the best round of a search.
type Result struct {
	// Bitmap is the decoded output of the winning round.
	Bitmap *bitmap.Bitmap
	Binary []byte
	// Quality is rounded to SignificantDigits.
	Quality  float64
	Distance float64
	Rounds   []Round
}

// Search runs at most cfg.MaxRounds sequential rounds and returns the
// round whose distance is closest to cfg.TargetDistance. Any encode,
// decode or metric failure aborts the search.
func Search(b *bitmap.Bitmap, encode EncodeFunc, decode DecodeFunc, metric Metric, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	step := cfg.Step
	if step == 0 {
		step = 1
	}

	lo, hi := cfg.Min, cfg.Max
	measured := make(map[float64]bool, cfg.MaxRounds)
	var (
		best     *Result
		bestDiff = math.Inf(1)
		rounds   []Round
	)

	for round := 1; round <= cfg.MaxRounds; round++ {
		q := lo + (hi-lo)/2
		if cfg.Integer {
			q = math.Round(q)
		}
		// The range has collapsed onto a value already tried.
		if measured[q] {
			break
		}
		measured[q] = true

		data, err := encode(b, q)
		if err != nil {
			return nil, fmt.Errorf("round %d at %v: %w: %w", round, q, codec.ErrEncode, err)
		}
		out, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("round %d at %v: %w: %w", round, q, codec.ErrDecode, err)
		}
		dist, err := metric.Distance(b, out)
		if err != nil {
			return nil, fmt.Errorf("round %d at %v: measure distance: %w", round, q, err)
		}
		if math.IsNaN(dist) || math.IsInf(dist, 0) {
			return nil, fmt.Errorf("round %d at %v: metric returned %v", round, q, dist)
		}
		rounds = append(rounds, Round{Quality: q, Distance: dist, Size: len(data)})

		if diff := math.Abs(dist - cfg.TargetDistance); diff < bestDiff {
			bestDiff = diff
			best = &Result{Bitmap: out, Binary: data, Quality: q, Distance: dist}
		}

		if dist > cfg.TargetDistance {
			lo = q
		} else {
			hi = q
		}
		if math.Abs(hi-lo) < step {
			break
		}
	}

	best.Quality = RoundSignificant(best.Quality, SignificantDigits)
	best.Rounds = rounds
	return best, nil
}

// RoundSignificant rounds v to the given number of significant digits.
func RoundSignificant(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}
