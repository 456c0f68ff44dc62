package encoder

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/AnyUserName/imgcrush/internal/codec"
	"github.com/AnyUserName/imgcrush/internal/options"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// BMP reads and writes uncompressed Windows bitmaps.
func BMP() codec.Descriptor {
	return codec.Descriptor{
		Name:      "bmp",
		Extension: "bmp",
		Detectors: []*regexp.Regexp{codec.Signature(`^BM`)},
		Decoder:   staticDecoder(imageDecoder("bmp", bmp.Decode)),
		Encoder: staticEncoder(codec.EncoderFunc(func(pix []byte, width, height int, _ options.Options) ([]byte, error) {
			img, err := pixImage(pix, width, height)
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			if err := bmp.Encode(&buf, img); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		})),
		DefaultOptions: options.Options{},
	}
}

// TIFF reads baseline TIFF and writes uncompressed or deflate TIFF.
func TIFF() codec.Descriptor {
	return codec.Descriptor{
		Name:      "tiff",
		Extension: "tiff",
		Detectors: []*regexp.Regexp{
			codec.Signature(`^II\*\x{00}`),
			codec.Signature(`^MM\x{00}\*`),
		},
		Decoder:        staticDecoder(imageDecoder("tiff", tiff.Decode)),
		Encoder:        staticEncoder(codec.EncoderFunc(encodeTIFF)),
		DefaultOptions: options.Options{"compression": "deflate", "predictor": true},
	}
}

func encodeTIFF(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	var ct tiff.CompressionType
	switch c := opts.Text("compression", "deflate"); c {
	case "deflate":
		ct = tiff.Deflate
	case "none":
		ct = tiff.Uncompressed
	default:
		return nil, fmt.Errorf("tiff: unsupported compression %q", c)
	}
	predictor, err := opts.Bool("predictor", true)
	if err != nil {
		return nil, err
	}
	img, err := pixImage(pix, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: ct, Predictor: predictor}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
