package bitmap

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestFromImage_OffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 7, 15, 27))
	src.SetNRGBA(5, 7, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(14, 26, color.NRGBA{R: 1, G: 2, B: 3, A: 4})

	b := FromImage(src)
	if b.Width != 10 || b.Height != 20 {
		t.Fatalf("dimensions: got %dx%d, want 10x20", b.Width, b.Height)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := b.Pix[:4]; got[0] != 10 || got[1] != 20 || got[2] != 30 || got[3] != 255 {
		t.Errorf("first pixel: got %v", got)
	}
	last := b.Pix[len(b.Pix)-4:]
	if last[0] != 1 || last[3] != 4 {
		t.Errorf("last pixel: got %v", last)
	}

	// No aliasing with the source.
	b.Pix[0] = 99
	if src.Pix[0] == 99 {
		t.Error("bitmap aliases source image memory")
	}
}

func TestValidate(t *testing.T) {
	if err := New(3, 2).Validate(); err != nil {
		t.Fatalf("valid bitmap rejected: %v", err)
	}

	bad := &Bitmap{Pix: make([]byte, 10), Width: 3, Height: 2}
	if err := bad.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("short buffer: got %v, want ErrInvalid", err)
	}

	var nilBitmap *Bitmap
	if err := nilBitmap.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("nil bitmap: got %v, want ErrInvalid", err)
	}

	if _, err := FromPix(make([]byte, 4), 0, 1); !errors.Is(err, ErrInvalid) {
		t.Errorf("zero width: got %v, want ErrInvalid", err)
	}
}

func TestImageSharesBuffer(t *testing.T) {
	b := New(2, 2)
	img := b.Image()
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 255})
	if b.Pix[12] != 200 {
		t.Errorf("image view does not share buffer: pix[12]=%d", b.Pix[12])
	}
}

func TestCloneAndOpaque(t *testing.T) {
	b := New(2, 1)
	for i := 3; i < len(b.Pix); i += Channels {
		b.Pix[i] = 0xff
	}
	if !b.Opaque() {
		t.Fatal("fully opaque bitmap reported transparent")
	}
	c := b.Clone()
	c.Pix[3] = 0
	if !b.Opaque() {
		t.Error("clone shares memory with original")
	}
	if c.Opaque() {
		t.Error("transparent pixel not detected")
	}
}
