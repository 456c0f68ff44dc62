package encoder

import (
	"bytes"
	"fmt"
	"image/gif"
	"image/png"
	"regexp"

	"github.com/AnyUserName/imgcrush/internal/codec"
	"github.com/AnyUserName/imgcrush/internal/options"
)

// PNG encodes losslessly with Go's standard library. There is no quality
// knob, so it cannot be auto-optimized; pair it with the quant
// preprocessor to trade fidelity for size.
func PNG() codec.Descriptor {
	return codec.Descriptor{
		Name:           "png",
		Extension:      "png",
		Detectors:      []*regexp.Regexp{codec.Signature(`^\x{89}PNG\r\n\x{1A}\n`)},
		Decoder:        staticDecoder(imageDecoder("png", png.Decode)),
		Encoder:        staticEncoder(codec.EncoderFunc(encodePNG)),
		DefaultOptions: options.Options{"compression": "best"},
	}
}

var pngLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"speed":   png.BestSpeed,
	"best":    png.BestCompression,
}

func encodePNG(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	name := opts.Text("compression", "best")
	level, ok := pngLevels[name]
	if !ok {
		return nil, fmt.Errorf("png: unknown compression %q", name)
	}
	img, err := pixImage(pix, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(512 * 1024)

	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GIF encodes a single frame, reduced to the first numColors entries of
// the Plan 9 palette with Floyd-Steinberg dithering.
func GIF() codec.Descriptor {
	return codec.Descriptor{
		Name:           "gif",
		Extension:      "gif",
		Detectors:      []*regexp.Regexp{codec.Signature(`^GIF8[79]a`)},
		Decoder:        staticDecoder(imageDecoder("gif", gif.Decode)),
		Encoder:        staticEncoder(codec.EncoderFunc(encodeGIF)),
		DefaultOptions: options.Options{"numColors": 256},
	}
}

func encodeGIF(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	n, err := opts.Int("numColors", 256)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > 256 {
		return nil, fmt.Errorf("gif: numColors %d out of range [1, 256]", n)
	}
	img, err := pixImage(pix, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: n}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
