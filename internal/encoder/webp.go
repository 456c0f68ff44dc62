package encoder

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"regexp"
	"sync/atomic"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/codec"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// WebP encodes with libwebp (cgo) and decodes with the pure-Go decoder.
func WebP() codec.Descriptor {
	return codec.Descriptor{
		Name:      "webp",
		Extension: "webp",
		Detectors: []*regexp.Regexp{codec.Signature(`(?s)^RIFF....WEBPVP8[ LX]`)},
		Decoder:   staticDecoder(imageDecoder("webp", xwebp.Decode)),
		Encoder:   staticEncoder(codec.EncoderFunc(encodeWebP)),
		DefaultOptions: options.Options{
			"quality":  75,
			"lossless": false,
			"exact":    false,
		},
		AutoOptimize: &codec.AutoOptimize{Option: "quality", Min: 0, Max: 100, Step: 1},
	}
}

func encodeWebP(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	q, err := opts.Float("quality", 75)
	if err != nil {
		return nil, err
	}
	lossless, err := opts.Bool("lossless", false)
	if err != nil {
		return nil, err
	}
	exact, err := opts.Bool("exact", false)
	if err != nil {
		return nil, err
	}
	img, err := pixImage(pix, width, height)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(128 * 1024)
	err = webp.Encode(&buf, img, &webp.Options{
		Lossless: lossless,
		Quality:  float32(clampQuality(q, 0, 100)),
		Exact:    exact,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AVIF shells out to libavif's avifenc and avifdec, which avoids linking
// libaom. Install: brew install libavif / apt install libavif-bin.
//
// cq_level is the AV1 quantizer, 0 (lossless) to 63 (worst), so the
// search range runs from 62 down to 0.
func AVIF() codec.Descriptor {
	return codec.Descriptor{
		Name:      "avif",
		Extension: "avif",
		Detectors: []*regexp.Regexp{codec.Signature(`(?s)^....ftypavi[fs]`)},
		Decoder: func() (codec.Decoder, error) {
			path, err := exec.LookPath("avifdec")
			if err != nil {
				return nil, fmt.Errorf("avifdec not found in PATH; install with: brew install libavif")
			}
			return &avifDecoder{path: path}, nil
		},
		Encoder: func() (codec.Encoder, error) {
			path, err := exec.LookPath("avifenc")
			if err != nil {
				return nil, fmt.Errorf("avifenc not found in PATH; install with: brew install libavif")
			}
			return &avifEncoder{path: path}, nil
		},
		DefaultOptions: options.Options{"cq_level": 33, "speed": 6},
		AutoOptimize:   &codec.AutoOptimize{Option: "cq_level", Min: 62, Max: 0, Integer: true},
	}
}

type avifEncoder struct{ path string }

func (e *avifEncoder) Encode(pix []byte, width, height int, opts options.Options) ([]byte, error) {
	cq, err := opts.Int("cq_level", 33)
	if err != nil {
		return nil, err
	}
	speed, err := opts.Int("speed", 6)
	if err != nil {
		return nil, err
	}
	cq = int(clampQuality(float64(cq), 0, 63))
	speed = int(clampQuality(float64(speed), 0, 10)) // 0=slowest, 10=fastest

	src, err := encodePNG(pix, width, height, options.Options{"compression": "speed"})
	if err != nil {
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	return runTool(e.path, src, "png", "avif", func(in, out string) []string {
		return []string{
			"--min", fmt.Sprint(cq),
			"--max", fmt.Sprint(cq),
			"--speed", fmt.Sprint(speed),
			"-j", "all",
			in, out,
		}
	})
}

type avifDecoder struct{ path string }

func (d *avifDecoder) Decode(data []byte) (*bitmap.Bitmap, error) {
	out, err := runTool(d.path, data, "avif", "png", func(in, out string) []string {
		return []string{in, out}
	})
	if err != nil {
		return nil, err
	}
	return imageDecoder("avif", png.Decode).Decode(out)
}

// runTool writes input to a temp file, runs the tool with the arguments
// built from the input and output paths, and returns the output file.
func runTool(tool string, input []byte, inExt, outExt string, args func(in, out string) []string) ([]byte, error) {
	id := tempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("imgcrush_src_%d_*.%s", id, inExt))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	dstFile, err := os.CreateTemp("", fmt.Sprintf("imgcrush_dst_%d_*.%s", id, outExt))
	if err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	if _, err := srcFile.Write(input); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("write temp: %w", err)
	}
	if err := srcFile.Close(); err != nil {
		return nil, fmt.Errorf("write temp: %w", err)
	}

	cmd := exec.Command(tool, args(srcPath, dstPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", tool, err, bytes.TrimSpace(out))
	}
	return os.ReadFile(dstPath)
}
