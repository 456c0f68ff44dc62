package preprocess

import (
	"errors"
	"testing"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/google/go-cmp/cmp"
)

func checker(w, h int) *bitmap.Bitmap {
	b := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = v, uint8(x*10), uint8(y*10), 255
		}
	}
	return b
}

func TestApply_EmptyChainIsNoop(t *testing.T) {
	b := checker(4, 4)
	got, err := Default().Apply(b, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != b {
		t.Error("empty chain should return the input bitmap")
	}
}

func TestApply_LeftToRight(t *testing.T) {
	b := checker(40, 20)
	got, err := Default().Apply(b, []Step{
		{Name: "resize", Options: options.Options{"width": 20}},
		{Name: "rotate", Options: options.Options{"numRotations": 1}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// 40x20 → 20x10 → rotated 10x20.
	if got.Width != 10 || got.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 10x20", got.Width, got.Height)
	}
	if b.Width != 40 || len(b.Pix) != 40*20*4 {
		t.Error("input bitmap modified")
	}
}

func TestApply_MergesDefaults(t *testing.T) {
	var seen options.Options
	r, err := NewRegistry(Preprocessor{
		Name:           "recorder",
		DefaultOptions: options.Options{"a": 1, "b": 2},
		Instantiate: func() (Transform, error) {
			return func(pix []byte, w, h int, opts options.Options) (*bitmap.Bitmap, error) {
				seen = opts
				out := make([]byte, len(pix))
				copy(out, pix)
				return bitmap.FromPix(out, w, h)
			}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Apply(checker(2, 2), []Step{{Name: "recorder", Options: options.Options{"b": 20, "c": 30}}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := options.Options{"a": 1, "b": 20, "c": 30}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("merged options (-want +got):\n%s", diff)
	}
}

func TestApply_InstantiatesOncePerApply(t *testing.T) {
	instantiations := 0
	r, err := NewRegistry(Preprocessor{
		Name: "copy",
		Instantiate: func() (Transform, error) {
			instantiations++
			return func(pix []byte, w, h int, _ options.Options) (*bitmap.Bitmap, error) {
				out := make([]byte, len(pix))
				copy(out, pix)
				return bitmap.FromPix(out, w, h)
			}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	chain := []Step{{Name: "copy"}, {Name: "copy"}, {Name: "COPY"}}
	if _, err := r.Apply(checker(2, 2), chain); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if instantiations != 1 {
		t.Errorf("instantiations: got %d, want 1", instantiations)
	}
}

func TestApply_FailureAbortsChain(t *testing.T) {
	calls := 0
	r, err := NewRegistry(
		Preprocessor{
			Name: "fail",
			Instantiate: func() (Transform, error) {
				return func([]byte, int, int, options.Options) (*bitmap.Bitmap, error) {
					return nil, errors.New("nope")
				}, nil
			},
		},
		Preprocessor{
			Name: "count",
			Instantiate: func() (Transform, error) {
				return func(pix []byte, w, h int, _ options.Options) (*bitmap.Bitmap, error) {
					calls++
					return bitmap.New(w, h), nil
				}, nil
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Apply(checker(2, 2), []Step{{Name: "count"}, {Name: "fail"}, {Name: "count"}})
	if !errors.Is(err, ErrPreprocess) {
		t.Fatalf("got %v, want ErrPreprocess", err)
	}
	if got != nil {
		t.Error("partial result returned")
	}
	if calls != 1 {
		t.Errorf("steps after the failure ran: calls=%d", calls)
	}
}

func TestApply_UnknownAndInvalidOutput(t *testing.T) {
	_, err := Default().Apply(checker(2, 2), []Step{{Name: "sepia"}})
	if !errors.Is(err, ErrUnknownPreprocessor) {
		t.Errorf("got %v, want ErrUnknownPreprocessor", err)
	}

	r, _ := NewRegistry(Preprocessor{
		Name: "broken",
		Instantiate: func() (Transform, error) {
			return func([]byte, int, int, options.Options) (*bitmap.Bitmap, error) {
				return &bitmap.Bitmap{Pix: make([]byte, 3), Width: 2, Height: 2}, nil
			}, nil
		},
	})
	if _, err := r.Apply(checker(2, 2), []Step{{Name: "broken"}}); !errors.Is(err, bitmap.ErrInvalid) {
		t.Errorf("got %v, want bitmap.ErrInvalid", err)
	}
}

func TestResize_KeepsAspect(t *testing.T) {
	got, err := Default().Apply(checker(100, 50), []Step{{Name: "resize", Options: options.Options{"height": 10}}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 20 || got.Height != 10 {
		t.Errorf("got %dx%d, want 20x10", got.Width, got.Height)
	}

	if _, err := Default().Apply(checker(4, 4), []Step{{Name: "resize"}}); !errors.Is(err, ErrPreprocess) {
		t.Errorf("resize without target: got %v", err)
	}
	if _, err := Default().Apply(checker(4, 4), []Step{{Name: "resize", Options: options.Options{"width": 2, "method": "bogus"}}}); err == nil {
		t.Error("unknown resize method accepted")
	}
}

func TestRotate_Clockwise(t *testing.T) {
	b := bitmap.New(2, 1)
	b.Pix[0] = 200 // left pixel red
	got, err := Default().Apply(b, []Step{{Name: "rotate", Options: options.Options{"numRotations": 1}}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 1 || got.Height != 2 {
		t.Fatalf("dimensions: got %dx%d", got.Width, got.Height)
	}
	// Clockwise: the left pixel ends up on top.
	if got.Pix[0] != 200 {
		t.Errorf("top pixel red = %d, want 200", got.Pix[0])
	}

	same, err := Default().Apply(b, []Step{{Name: "rotate", Options: options.Options{"numRotations": 4}}})
	if err != nil {
		t.Fatal(err)
	}
	if same == b || same.Width != 2 {
		t.Error("full rotation must return a new, unrotated bitmap")
	}
}

func TestQuant_LimitsColors(t *testing.T) {
	got, err := Default().Apply(checker(16, 16), []Step{{Name: "quant", Options: options.Options{"numColors": 4, "dither": 0}}})
	if err != nil {
		t.Fatal(err)
	}
	colors := map[[4]byte]bool{}
	for i := 0; i < len(got.Pix); i += 4 {
		colors[[4]byte(got.Pix[i:i+4])] = true
	}
	if len(colors) > 4 {
		t.Errorf("distinct colors: got %d, want <= 4", len(colors))
	}

	if _, err := Default().Apply(checker(2, 2), []Step{{Name: "quant", Options: options.Options{"numColors": 1}}}); err == nil {
		t.Error("numColors=1 accepted")
	}
}

func TestQuant_DitherStrength(t *testing.T) {
	// Black and white columns fix the 2-color palette; the grey band on
	// the right is what dithering spreads.
	const w, h, band = 32, 16, 24
	src := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			v := uint8(128)
			if x < band {
				v = uint8((x % 2) * 255)
			}
			src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = v, v, v, 255
		}
	}

	blacks := func(dither float64) int {
		t.Helper()
		got, err := Default().Apply(src, []Step{{Name: "quant", Options: options.Options{"numColors": 2, "dither": dither}}})
		if err != nil {
			t.Fatalf("dither %v: %v", dither, err)
		}
		n := 0
		for y := 0; y < h; y++ {
			for x := band; x < w; x++ {
				if got.Pix[(y*w+x)*4] == 0 {
					n++
				}
			}
		}
		return n
	}

	greys := (w - band) * h
	if n := blacks(0); n != 0 {
		t.Errorf("dither 0: %d black pixels in the grey band, want none", n)
	}
	for _, d := range []float64{0.5, 1} {
		if n := blacks(d); n == 0 || n == greys {
			t.Errorf("dither %v: %d of %d grey pixels black, want a mix", d, n, greys)
		}
	}
}

func TestBlur_Smooths(t *testing.T) {
	src := checker(8, 8)
	got, err := Default().Apply(src, []Step{{Name: "blur", Options: options.Options{"sigma": 2}}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 8 || got.Height != 8 {
		t.Fatalf("dimensions changed: %dx%d", got.Width, got.Height)
	}
	if got.Pix[0] == 255 || got.Pix[0] == 0 {
		t.Errorf("checkerboard not smoothed: red=%d", got.Pix[0])
	}
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep("Resize:{width: 640, method: 'catrom'}")
	if err != nil {
		t.Fatal(err)
	}
	want := Step{Name: "resize", Options: options.Options{"width": 640.0, "method": "catrom"}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("step (-want +got):\n%s", diff)
	}

	s, err = ParseStep("rotate")
	if err != nil || s.Name != "rotate" || len(s.Options) != 0 {
		t.Errorf("bare name: got %+v, %v", s, err)
	}

	if _, err := ParseStep(":{a: 1}"); err == nil {
		t.Error("missing name accepted")
	}
}
