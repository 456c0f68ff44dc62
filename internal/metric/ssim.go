// Package metric provides the default perceptual distance used by the
// quality search.
package metric

import (
	"fmt"
	"image"
	"math"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"golang.org/x/image/draw"
)

const (
	// maxPixels bounds the work per comparison; larger inputs are
	// downsampled first.
	maxPixels = 500_000

	window = 8

	// SSIM stabilizers for 8-bit luma: (0.01*255)², (0.03*255)².
	c1 = 6.5025
	c2 = 58.5225
)

// SSIM scores two bitmaps as 100 × (1 − mean SSIM) over 8×8 luma windows.
// Identical images score 0; a score around 1.4 is hard to tell apart from
// the original at normal viewing distance.
type SSIM struct {
	// MaxPixels overrides the downsampling threshold. Zero uses 0.5 MP.
	MaxPixels int
}

// Distance implements optimizer.Metric.
func (m SSIM) Distance(a, b *bitmap.Bitmap) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if a.Width != b.Width || a.Height != b.Height {
		return 0, fmt.Errorf("metric: size mismatch %dx%d vs %dx%d",
			a.Width, a.Height, b.Width, b.Height)
	}

	limit := m.MaxPixels
	if limit <= 0 {
		limit = maxPixels
	}
	la := luma(downsample(a, limit))
	lb := luma(downsample(b, limit))
	s := meanSSIM(la, lb)
	return math.Max(0, 100*(1-s)), nil
}

type lumaPlane struct {
	y    []float64
	w, h int
}

// downsample scales bitmaps above limit pixels with bilinear filtering,
// which keeps structure while making the comparison affordable.
func downsample(b *bitmap.Bitmap, limit int) *image.NRGBA {
	src := b.Image()
	pixels := b.Width * b.Height
	if pixels <= limit {
		return src
	}
	scale := math.Sqrt(float64(limit) / float64(pixels))
	w := max(1, int(float64(b.Width)*scale))
	h := max(1, int(float64(b.Height)*scale))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}

// luma converts to BT.601 luma, compositing transparent pixels over black
// so alpha differences still register.
func luma(img *image.NRGBA) lumaPlane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	p := lumaPlane{y: make([]float64, w*h), w: w, h: h}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			a := float64(px[3]) / 255
			p.y[y*w+x] = a * (0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2]))
		}
	}
	return p
}

func meanSSIM(a, b lumaPlane) float64 {
	var total float64
	var count int
	for y := 0; y < a.h; y += window {
		for x := 0; x < a.w; x += window {
			total += windowSSIM(a, b, x, y)
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}

func windowSSIM(a, b lumaPlane, x0, y0 int) float64 {
	x1 := min(x0+window, a.w)
	y1 := min(y0+window, a.h)

	var m1, m2, n float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m1 += a.y[y*a.w+x]
			m2 += b.y[y*b.w+x]
			n++
		}
	}
	m1 /= n
	m2 /= n

	var s1, s2, s12 float64
	if n > 1 {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				d1 := a.y[y*a.w+x] - m1
				d2 := b.y[y*b.w+x] - m2
				s1 += d1 * d1
				s2 += d2 * d2
				s12 += d1 * d2
			}
		}
		s1 /= n - 1
		s2 /= n - 1
		s12 /= n - 1
	}

	return ((2*m1*m2 + c1) * (2*s12 + c2)) / ((m1*m1 + m2*m2 + c1) * (s1 + s2 + c2))
}
