package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Default returns a registry with the built-in preprocessors.
func Default() *Registry {
	r, err := NewRegistry(
		Preprocessor{
			Name:           "resize",
			Description:    "Resize; a zero width or height keeps the aspect ratio",
			DefaultOptions: options.Options{"width": 0, "height": 0, "method": "lanczos3", "fit": false},
			Instantiate:    func() (Transform, error) { return resize, nil },
		},
		Preprocessor{
			Name:           "rotate",
			Description:    "Rotate clockwise by numRotations quarter turns",
			DefaultOptions: options.Options{"numRotations": 0},
			Instantiate:    func() (Transform, error) { return rotate, nil },
		},
		Preprocessor{
			Name:           "quant",
			Description:    "Reduce the palette to numColors, optionally dithered",
			DefaultOptions: options.Options{"numColors": 255, "dither": 1.0},
			Instantiate:    func() (Transform, error) { return quantize, nil },
		},
		Preprocessor{
			Name:           "blur",
			Description:    "Gaussian blur with the given sigma",
			DefaultOptions: options.Options{"sigma": 1.0},
			Instantiate:    func() (Transform, error) { return blur, nil },
		},
	)
	if err != nil {
		panic(err) // static table
	}
	return r
}

var resampleFilters = map[string]imaging.ResampleFilter{
	"lanczos3": imaging.Lanczos,
	"lanczos":  imaging.Lanczos,
	"mitchell": imaging.MitchellNetravali,
	"catrom":   imaging.CatmullRom,
	"triangle": imaging.Linear,
	"linear":   imaging.Linear,
	"box":      imaging.Box,
	"nearest":  imaging.NearestNeighbor,
}

func resize(pix []byte, width, height int, opts options.Options) (*bitmap.Bitmap, error) {
	w, err := opts.Int("width", 0)
	if err != nil {
		return nil, err
	}
	h, err := opts.Int("height", 0)
	if err != nil {
		return nil, err
	}
	fit, err := opts.Bool("fit", false)
	if err != nil {
		return nil, err
	}
	method := strings.ToLower(opts.Text("method", "lanczos3"))
	filter, ok := resampleFilters[method]
	if !ok {
		return nil, fmt.Errorf("resize: unknown method %q", method)
	}
	if w < 0 || h < 0 || (w == 0 && h == 0) {
		return nil, fmt.Errorf("resize: invalid target %dx%d", w, h)
	}

	src, err := view(pix, width, height)
	if err != nil {
		return nil, err
	}
	if fit {
		if w == 0 || h == 0 {
			return nil, fmt.Errorf("resize: fit needs both width and height")
		}
		return bitmap.FromImage(imaging.Fit(src, w, h, filter)), nil
	}
	return bitmap.FromImage(imaging.Resize(src, w, h, filter)), nil
}

func rotate(pix []byte, width, height int, opts options.Options) (*bitmap.Bitmap, error) {
	n, err := opts.Int("numRotations", 0)
	if err != nil {
		return nil, err
	}
	src, err := view(pix, width, height)
	if err != nil {
		return nil, err
	}
	// imaging rotates counter-clockwise.
	switch ((n % 4) + 4) % 4 {
	case 1:
		return bitmap.FromImage(imaging.Rotate270(src)), nil
	case 2:
		return bitmap.FromImage(imaging.Rotate180(src)), nil
	case 3:
		return bitmap.FromImage(imaging.Rotate90(src)), nil
	}
	return bitmap.FromImage(src), nil
}

func blur(pix []byte, width, height int, opts options.Options) (*bitmap.Bitmap, error) {
	sigma, err := opts.Float("sigma", 1)
	if err != nil {
		return nil, err
	}
	src, err := view(pix, width, height)
	if err != nil {
		return nil, err
	}
	if sigma <= 0 {
		return bitmap.FromImage(src), nil
	}
	g := gift.New(gift.GaussianBlur(float32(sigma)))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return bitmap.FromImage(dst), nil
}

func quantize(pix []byte, width, height int, opts options.Options) (*bitmap.Bitmap, error) {
	n, err := opts.Int("numColors", 255)
	if err != nil {
		return nil, err
	}
	if n < 2 || n > 256 {
		return nil, fmt.Errorf("quant: numColors %d out of range [2, 256]", n)
	}
	dither, err := opts.Float("dither", 1)
	if err != nil {
		return nil, err
	}
	src, err := view(pix, width, height)
	if err != nil {
		return nil, err
	}

	pal := buildPalette(src, n)
	dst := image.NewPaletted(src.Rect, pal)
	switch {
	case dither >= 1:
		draw.FloydSteinberg.Draw(dst, dst.Rect, src, image.Point{})
	case dither > 0:
		diffuse(dst, src, dither)
	default:
		draw.Draw(dst, dst.Rect, src, image.Point{}, draw.Src)
	}
	return bitmap.FromImage(dst), nil
}

// diffuse maps src onto dst's palette with Floyd-Steinberg error
// diffusion, carrying only strength (0 < strength < 1) of each pixel's
// error to its neighbours.
func diffuse(dst *image.Paletted, src *image.NRGBA, strength float64) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	// Rows are padded by one pixel on each side.
	cur := make([][4]float64, w+2)
	next := make([][4]float64, w+2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(src.Rect.Min.X+x, src.Rect.Min.Y+y)
			var want [4]float64
			for c := range want {
				want[c] = min(255, max(0, float64(src.Pix[i+c])+cur[x+1][c]))
			}
			idx := dst.Palette.Index(color.NRGBA{
				R: uint8(want[0] + 0.5), G: uint8(want[1] + 0.5),
				B: uint8(want[2] + 0.5), A: uint8(want[3] + 0.5),
			})
			dst.SetColorIndex(dst.Rect.Min.X+x, dst.Rect.Min.Y+y, uint8(idx))

			got := color.NRGBAModel.Convert(dst.Palette[idx]).(color.NRGBA)
			have := [4]float64{float64(got.R), float64(got.G), float64(got.B), float64(got.A)}
			for c := range want {
				e := (want[c] - have[c]) * strength
				cur[x+2][c] += e * 7 / 16
				next[x][c] += e * 3 / 16
				next[x+1][c] += e * 5 / 16
				next[x+2][c] += e * 1 / 16
			}
		}
		cur, next = next, cur
		clear(next)
	}
}

// buildPalette picks the n most populated buckets of a 5-bit-per-channel
// RGB (4-bit alpha) histogram, each represented by its mean color.
func buildPalette(img *image.NRGBA, n int) color.Palette {
	type bucket struct {
		key        uint32
		count      int
		r, g, b, a int
	}
	buckets := map[uint32]*bucket{}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r, g, b, a := img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
		key := uint32(r>>3)<<14 | uint32(g>>3)<<9 | uint32(b>>3)<<4 | uint32(a>>4)
		bk := buckets[key]
		if bk == nil {
			bk = &bucket{key: key}
			buckets[key] = bk
		}
		bk.count++
		bk.r += int(r)
		bk.g += int(g)
		bk.b += int(b)
		bk.a += int(a)
	}

	sorted := make([]*bucket, 0, len(buckets))
	for _, bk := range buckets {
		sorted = append(sorted, bk)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].key < sorted[j].key
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	pal := make(color.Palette, 0, len(sorted))
	for _, bk := range sorted {
		pal = append(pal, color.NRGBA{
			R: uint8(bk.r / bk.count),
			G: uint8(bk.g / bk.count),
			B: uint8(bk.b / bk.count),
			A: uint8(bk.a / bk.count),
		})
	}
	return pal
}

// view wraps a pixel buffer as an image without copying.
func view(pix []byte, width, height int) (*image.NRGBA, error) {
	b, err := bitmap.FromPix(pix, width, height)
	if err != nil {
		return nil, err
	}
	return b.Image(), nil
}
