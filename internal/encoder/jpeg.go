package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"regexp"

	"github.com/AnyUserName/imgcrush/internal/codec"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/gen2brain/jpegli"
)

var jpegSignature = codec.Signature(`^\x{FF}\x{D8}\x{FF}`)

// JPEG encodes with Go's standard library.
func JPEG() codec.Descriptor {
	return codec.Descriptor{
		Name:           "jpeg",
		Extension:      "jpg",
		Detectors:      []*regexp.Regexp{jpegSignature},
		Decoder:        staticDecoder(imageDecoder("jpeg", jpeg.Decode)),
		Encoder:        staticEncoder(codec.EncoderFunc(encodeJPEG)),
		DefaultOptions: options.Options{"quality": 75},
		AutoOptimize:   &codec.AutoOptimize{Option: "quality", Min: 1, Max: 100, Integer: true},
	}
}

func encodeJPEG(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	q, err := opts.Int("quality", 75)
	if err != nil {
		return nil, err
	}
	img, err := pixImage(pix, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(256 * 1024) // typical photo output, avoids repeated grow

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(clampQuality(float64(q), 1, 100))}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JPEGLI encodes with jpegli, which reaches a given perceptual quality at
// a smaller size than the standard encoder. Its output is plain JPEG, so it
// has no detector of its own; decoding resolves to the jpeg codec.
func JPEGLI() codec.Descriptor {
	return codec.Descriptor{
		Name:      "jpegli",
		Extension: "jpg",
		Decoder:   staticDecoder(imageDecoder("jpegli", jpeg.Decode)),
		Encoder:   staticEncoder(codec.EncoderFunc(encodeJPEGLI)),
		DefaultOptions: options.Options{
			"quality":            75,
			"chroma_subsampling": "420",
		},
		AutoOptimize: &codec.AutoOptimize{Option: "quality", Min: 1, Max: 100, Integer: true},
	}
}

var subsampleRatios = map[string]image.YCbCrSubsampleRatio{
	"444": image.YCbCrSubsampleRatio444,
	"422": image.YCbCrSubsampleRatio422,
	"420": image.YCbCrSubsampleRatio420,
	"440": image.YCbCrSubsampleRatio440,
}

func encodeJPEGLI(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	q, err := opts.Int("quality", 75)
	if err != nil {
		return nil, err
	}
	cs := opts.Text("chroma_subsampling", "420")
	ratio, ok := subsampleRatios[cs]
	if !ok {
		return nil, fmt.Errorf("jpegli: unsupported chroma_subsampling %q", cs)
	}
	img, err := pixImage(pix, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(256 * 1024)
	err = jpegli.Encode(&buf, img, &jpegli.EncodingOptions{
		Quality:           int(clampQuality(float64(q), 1, 100)),
		ChromaSubsampling: ratio,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
