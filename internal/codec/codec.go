// Package codec defines the codec plugin contract, the ordered codec
// registry and magic-byte format detection.
package codec

import (
	"regexp"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/options"
)

// Decoder turns an encoded file into a bitmap.
type Decoder interface {
	Decode(data []byte) (*bitmap.Bitmap, error)
}

// Encoder turns RGBA pixels into an encoded file.
type Encoder interface {
	Encode(pix []byte, width, height int, opts options.Options) ([]byte, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(data []byte) (*bitmap.Bitmap, error)

func (f DecoderFunc) Decode(data []byte) (*bitmap.Bitmap, error) { return f(data) }

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(pix []byte, width, height int, opts options.Options) ([]byte, error)

func (f EncoderFunc) Encode(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	return f(pix, width, height, opts)
}

// AutoOptimize names the encoder option the quality search tunes.
//
// Min is the lowest-quality end of the range and Max the highest-quality
// end. Min may be numerically greater than Max for options that grow as
// quality drops (a quantizer level, for example).
type AutoOptimize struct {
	Option string
	Min    float64
	Max    float64
	// Step is the smallest meaningful difference between two values.
	// Zero means 1.
	Step float64
	// Integer rounds every candidate to a whole number.
	Integer bool
}

// Descriptor is the static record a codec plugin registers.
//
// Decoder and Encoder are factories. They may be expensive (loading a
// wasm module, probing PATH) and are called lazily by the pipeline, at
// most once per run. A nil factory means the capability is missing.
type Descriptor struct {
	Name      string
	Extension string
	// Detectors are matched against the probe string built from the first
	// ProbeSize bytes of a buffer; see Probe.
	Detectors      []*regexp.Regexp
	Decoder        func() (Decoder, error)
	Encoder        func() (Encoder, error)
	DefaultOptions options.Options
	AutoOptimize   *AutoOptimize
}

// CanDecode reports whether the codec declares a decoder.
func (d *Descriptor) CanDecode() bool { return d.Decoder != nil }

// CanEncode reports whether the codec declares an encoder.
func (d *Descriptor) CanEncode() bool { return d.Encoder != nil }
