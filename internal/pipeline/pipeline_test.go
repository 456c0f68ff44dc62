package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/codec"
	"github.com/AnyUserName/imgcrush/internal/encoder"
	"github.com/AnyUserName/imgcrush/internal/optimizer"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
)

// rawCodec is a fake codec: "RAW!", width, height, then pixels. Encoding
// adds 100-quality to every byte, so with all-zero input the round trip
// drifts by exactly that amount.
type rawCodec struct {
	decoders atomic.Int32
	encoders atomic.Int32
}

func (c *rawCodec) descriptor() codec.Descriptor {
	return codec.Descriptor{
		Name:      "raw",
		Extension: "raw",
		Detectors: []*regexp.Regexp{codec.Signature(`^RAW!`)},
		Decoder: func() (codec.Decoder, error) {
			c.decoders.Add(1)
			return codec.DecoderFunc(decodeRaw), nil
		},
		Encoder: func() (codec.Encoder, error) {
			c.encoders.Add(1)
			return codec.EncoderFunc(encodeRaw), nil
		},
		DefaultOptions: options.Options{"quality": 50},
		AutoOptimize:   &codec.AutoOptimize{Option: "quality", Min: 0, Max: 100, Integer: true},
	}
}

func encodeRaw(pix []byte, w, h int, opts options.Options) ([]byte, error) {
	q, err := opts.Int("quality", 50)
	if err != nil {
		return nil, err
	}
	out := append([]byte("RAW!"), byte(w), byte(h))
	for _, p := range pix {
		out = append(out, p+byte(100-q))
	}
	return out, nil
}

func decodeRaw(data []byte) (*bitmap.Bitmap, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("raw: short header")
	}
	return bitmap.FromPix(append([]byte(nil), data[6:]...), int(data[4]), int(data[5]))
}

// driftMetric reports the first byte's drift divided by 10.
var driftMetric = optimizer.MetricFunc(func(a, b *bitmap.Bitmap) (float64, error) {
	return float64(int(b.Pix[0])-int(a.Pix[0])) / 10, nil
})

func rawInput(w, h int) []byte {
	return append([]byte("RAW!"), append([]byte{byte(w), byte(h)}, make([]byte, w*h*4)...)...)
}

func newRawPipeline(t *testing.T, c *rawCodec) *Pipeline {
	t.Helper()
	reg, err := codec.NewRegistry(c.descriptor())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(reg, preprocess.Default(), driftMetric)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestCapabilitiesAcquiredOncePerRun(t *testing.T) {
	c := &rawCodec{}
	p := newRawPipeline(t, c)

	res, err := p.Run(Request{Input: rawInput(4, 4), Codec: "raw", Mode: Auto{}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rounds) < 2 {
		t.Fatalf("expected several rounds, got %d", len(res.Rounds))
	}
	// The source decode and every round trip share one decoder.
	if got := c.decoders.Load(); got != 1 {
		t.Errorf("decoder acquired %d times, want 1", got)
	}
	if got := c.encoders.Load(); got != 1 {
		t.Errorf("encoder acquired %d times, want 1", got)
	}

	// A new run acquires again.
	if _, err := p.Run(Request{Input: rawInput(4, 4), Codec: "raw"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := c.encoders.Load(); got != 2 {
		t.Errorf("encoder acquired %d times after two runs, want 2", got)
	}
}

func TestAutoConvergesOnTarget(t *testing.T) {
	p := newRawPipeline(t, &rawCodec{})
	rounds := 10
	res, err := p.Run(Request{
		Input: rawInput(2, 2), Codec: "raw",
		Mode: Auto{Overrides: optimizer.Overrides{MaxRounds: &rounds}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Optimized {
		t.Fatal("result not marked optimized")
	}
	// distance = (100-q)/10; target 1.4 → q = 86.
	if res.Quality != 86 {
		t.Errorf("quality: got %v, want 86", res.Quality)
	}
	if res.Distance != 1.4 {
		t.Errorf("distance: got %v, want 1.4", res.Distance)
	}
	if got := res.Options["quality"]; got != 86 {
		t.Errorf("effective quality option: got %v (%T), want int 86", got, got)
	}
	if res.Output[6] != 14 {
		t.Errorf("output is not the winning round: first pixel %d", res.Output[6])
	}
}

func TestAutoOverrides(t *testing.T) {
	p := newRawPipeline(t, &rawCodec{})
	one := 1
	res, err := p.Run(Request{
		Input: rawInput(2, 2), Codec: "raw",
		Mode: Auto{Overrides: optimizer.Overrides{MaxRounds: &one}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rounds) != 1 || res.Quality != 50 {
		t.Errorf("rounds %d quality %v, want 1 round at 50", len(res.Rounds), res.Quality)
	}
}

func TestGetImageSize(t *testing.T) {
	encoders := 0
	d := encoder.PNG()
	d.Encoder = func() (codec.Encoder, error) {
		encoders++
		return nil, errors.New("unavailable")
	}
	reg, err := codec.NewRegistry(d)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p := New(reg, preprocess.Default(), nil)

	w, h, err := p.GetImageSize(pngBytes(t, 10, 20))
	if err != nil {
		t.Fatalf("get image size: %v", err)
	}
	if w != 10 || h != 20 {
		t.Errorf("size: got %dx%d, want 10x20", w, h)
	}
	if encoders != 0 {
		t.Errorf("encoder acquired %d times", encoders)
	}
}

func TestFixedCompressIsDeterministic(t *testing.T) {
	p := New(encoder.NewRegistry(), preprocess.Default(), nil)
	in := pngBytes(t, 12, 8)

	a, err := p.Compress(in, "png", Fixed{Options: options.Options{"compression": "speed"}}, nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	b, err := p.Compress(in, "png", Fixed{Options: options.Options{"compression": "speed"}}, nil)
	if err != nil {
		t.Fatalf("compress again: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same input and options produced different output")
	}
	if w, h, err := p.GetImageSize(a); err != nil || w != 12 || h != 8 {
		t.Errorf("output size: %dx%d, %v", w, h, err)
	}
}

func TestRunReportsEffectiveOptions(t *testing.T) {
	p := New(encoder.NewRegistry(), preprocess.Default(), nil)
	res, err := p.Run(Request{
		Input: pngBytes(t, 8, 8), Codec: "webp",
		Mode: Fixed{Options: options.Options{"quality": 60}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.SourceCodec != "png" || res.Codec != "webp" || res.Extension != "webp" {
		t.Errorf("codecs: source %q target %q ext %q", res.SourceCodec, res.Codec, res.Extension)
	}
	if res.Options["quality"] != 60 || res.Options["lossless"] != false {
		t.Errorf("effective options: %v", res.Options)
	}
	if res.Optimized {
		t.Error("fixed run marked optimized")
	}
}

func TestChainRunsBeforeEncode(t *testing.T) {
	p := New(encoder.NewRegistry(), preprocess.Default(), nil)
	chain := []preprocess.Step{{Name: "resize", Options: options.Options{"width": 5}}}
	res, err := p.Run(Request{Input: pngBytes(t, 10, 20), Codec: "bmp", Chain: chain})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Width != 5 || res.Height != 10 {
		t.Errorf("output: got %dx%d, want 5x10", res.Width, res.Height)
	}
	if res.SourceWidth != 10 || res.SourceHeight != 20 {
		t.Errorf("source: got %dx%d, want 10x20", res.SourceWidth, res.SourceHeight)
	}
}

func TestAutoWithRealCodec(t *testing.T) {
	p := New(encoder.NewRegistry(), preprocess.Default(), nil)
	res, err := p.Run(Request{Input: pngBytes(t, 32, 32), Codec: "jpeg", Mode: Auto{}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Quality < 1 || res.Quality > 100 {
		t.Errorf("quality %v out of range", res.Quality)
	}
	if n := len(res.Rounds); n < 1 || n > optimizer.DefaultMaxRounds {
		t.Errorf("rounds: got %d", n)
	}
	if got := res.Options["quality"]; got != int(res.Quality) {
		t.Errorf("quality option %v does not match %v", got, res.Quality)
	}
	if name, err := p.Detect(res.Output); err != nil || name != "jpeg" {
		t.Errorf("output detected as %q, %v", name, err)
	}
}

func TestErrors(t *testing.T) {
	p := New(encoder.NewRegistry(), preprocess.Default(), nil)
	in := pngBytes(t, 4, 4)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown codec", Request{Input: in, Codec: "jxl"}, codec.ErrUnknownCodec},
		{"unsupported format", Request{Input: []byte("hello, world, not an image"), Codec: "png"}, codec.ErrUnsupportedFormat},
		{"malformed input", Request{Input: append([]byte("\x89PNG\r\n\x1a\n"), 1, 2, 3), Codec: "png"}, codec.ErrDecode},
		{"not optimizable", Request{Input: in, Codec: "png", Mode: Auto{}}, codec.ErrNotOptimizable},
		{"encode failure", Request{Input: in, Codec: "png", Mode: Fixed{Options: options.Options{"compression": "ultra"}}}, codec.ErrEncode},
		{"preprocess failure", Request{Input: in, Codec: "png", Chain: []preprocess.Step{{Name: "sharpen"}}}, preprocess.ErrUnknownPreprocessor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Run(tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMissingCapabilities(t *testing.T) {
	c := &rawCodec{}
	noEnc := c.descriptor()
	noEnc.Name = "decode-only"
	noEnc.Detectors = nil
	noEnc.Encoder = nil

	broken := c.descriptor()
	broken.Name = "broken"
	broken.Detectors = nil
	acquireErr := errors.New("tool not installed")
	broken.Encoder = func() (codec.Encoder, error) { return nil, acquireErr }

	reg, err := codec.NewRegistry(c.descriptor(), noEnc, broken)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p := New(reg, preprocess.Default(), driftMetric)

	if _, err := p.Compress(rawInput(2, 2), "decode-only", nil, nil); !errors.Is(err, codec.ErrNoEncoder) {
		t.Errorf("no encoder: got %v", err)
	}
	_, err = p.Compress(rawInput(2, 2), "broken", nil, nil)
	if !errors.Is(err, codec.ErrNoEncoder) || !errors.Is(err, acquireErr) {
		t.Errorf("failed acquisition: got %v", err)
	}
}
