// Package encoder provides the built-in codec plugins and the default
// codec registry.
//
// Most codecs wrap a Go image library. AVIF shells out to avifenc and
// avifdec, so it is only usable when libavif's tools are installed; its
// capabilities fail at acquisition time otherwise.
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/codec"
)

// pixImage wraps encoder input as an image without copying.
func pixImage(pix []byte, width, height int) (*image.NRGBA, error) {
	b, err := bitmap.FromPix(pix, width, height)
	if err != nil {
		return nil, err
	}
	return b.Image(), nil
}

// imageDecoder adapts an image.Decode-style function.
func imageDecoder(format string, decode func(io.Reader) (image.Image, error)) codec.Decoder {
	return codec.DecoderFunc(func(data []byte) (*bitmap.Bitmap, error) {
		img, err := decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", format, err)
		}
		return bitmap.FromImage(img), nil
	})
}

// staticDecoder returns a factory for a decoder that needs no setup.
func staticDecoder(d codec.Decoder) func() (codec.Decoder, error) {
	return func() (codec.Decoder, error) { return d, nil }
}

// staticEncoder returns a factory for an encoder that needs no setup.
func staticEncoder(e codec.Encoder) func() (codec.Encoder, error) {
	return func() (codec.Encoder, error) { return e, nil }
}

// clampQuality bounds a 0–100 style quality option.
func clampQuality(q, lo, hi float64) float64 {
	switch {
	case q < lo:
		return lo
	case q > hi:
		return hi
	}
	return q
}
