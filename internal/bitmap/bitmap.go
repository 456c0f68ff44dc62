// Package bitmap defines the decoded raster image passed between codecs,
// preprocessors and the quality search.
package bitmap

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Channels is the fixed channel count of every Bitmap (non-premultiplied RGBA).
const Channels = 4

// ErrInvalid is returned by Validate when the buffer does not match the
// declared dimensions.
var ErrInvalid = errors.New("bitmap: invalid buffer")

// Bitmap is a row-major RGBA pixel buffer. Stride is always Width*Channels.
type Bitmap struct {
	Pix    []byte
	Width  int
	Height int
}

// New allocates a zeroed bitmap of the given size.
func New(width, height int) *Bitmap {
	return &Bitmap{
		Pix:    make([]byte, width*height*Channels),
		Width:  width,
		Height: height,
	}
}

// FromPix wraps an existing pixel buffer. The buffer is not copied.
func FromPix(pix []byte, width, height int) (*Bitmap, error) {
	b := &Bitmap{Pix: pix, Width: width, Height: height}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// FromImage converts any image.Image to a Bitmap. The result never aliases
// the source image's memory.
func FromImage(img image.Image) *Bitmap {
	// imaging.Clone always returns a fresh *image.NRGBA anchored at (0,0)
	// with a tight stride, which is exactly our layout.
	n := imaging.Clone(img)
	return &Bitmap{
		Pix:    n.Pix,
		Width:  n.Rect.Dx(),
		Height: n.Rect.Dy(),
	}
}

// Validate checks the buffer length invariant.
func (b *Bitmap) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil bitmap", ErrInvalid)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalid, b.Width, b.Height)
	}
	if want := b.Width * b.Height * Channels; len(b.Pix) != want {
		return fmt.Errorf("%w: buffer is %d bytes, %dx%d needs %d",
			ErrInvalid, len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}

// Image returns an *image.NRGBA view sharing the bitmap's buffer.
func (b *Bitmap) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * Channels,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Bitmap{Pix: pix, Width: b.Width, Height: b.Height}
}

// Opaque reports whether every pixel has full alpha.
func (b *Bitmap) Opaque() bool {
	for i := 3; i < len(b.Pix); i += Channels {
		if b.Pix[i] != 0xff {
			return false
		}
	}
	return true
}
