package metric

import (
	"math/rand/v2"
	"testing"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
)

// gradient keeps every channel within [64, 191] so that noise up to 64
// never clips.
func gradient(w, h int) *bitmap.Bitmap {
	b := bitmap.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			b.Pix[i] = uint8(64 + x*128/w)
			b.Pix[i+1] = uint8(64 + y*128/h)
			b.Pix[i+2] = uint8(64 + (x^y)&0x7f)
			b.Pix[i+3] = 255
		}
	}
	return b
}

// noisy adds seeded uniform noise in [-amp, amp] to the color channels.
func noisy(src *bitmap.Bitmap, amp int) *bitmap.Bitmap {
	out := src.Clone()
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < len(out.Pix); i += 4 {
		d := rng.IntN(2*amp+1) - amp
		for c := 0; c < 3; c++ {
			out.Pix[i+c] = uint8(int(out.Pix[i+c]) + d)
		}
	}
	return out
}

func TestSSIM_IdenticalIsZero(t *testing.T) {
	a := gradient(32, 24)
	d, err := SSIM{}.Distance(a, a.Clone())
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d > 1e-9 {
		t.Errorf("identical images: got %v, want 0", d)
	}
}

func TestSSIM_MonotonicInNoise(t *testing.T) {
	a := gradient(64, 64)
	var prev float64
	for i, amp := range []int{2, 8, 24, 64} {
		d, err := SSIM{}.Distance(a, noisy(a, amp))
		if err != nil {
			t.Fatalf("amp %d: %v", amp, err)
		}
		if i > 0 && d <= prev {
			t.Errorf("amp %d: distance %v not larger than %v", amp, d, prev)
		}
		prev = d
	}
}

func TestSSIM_SizeMismatch(t *testing.T) {
	if _, err := (SSIM{}).Distance(gradient(8, 8), gradient(8, 9)); err == nil {
		t.Error("size mismatch accepted")
	}
}

func TestSSIM_Downsamples(t *testing.T) {
	a := gradient(200, 100)
	b := noisy(a, 16)
	full, err := SSIM{}.Distance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	small, err := SSIM{MaxPixels: 2000}.Distance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if full <= 0 || small < 0 {
		t.Errorf("unexpected distances: full=%v small=%v", full, small)
	}
}
