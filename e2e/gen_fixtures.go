//go:build ignore

// gen_fixtures creates small test images for the E2E smoke test, one per
// codec that can encode on this machine.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/encoder"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	os.MkdirAll(filepath.Join(dir, "cards"), 0o755)

	fixtures := []struct {
		name  string
		codec string
		img   *image.NRGBA
	}{
		{"banner", "jpeg", gradient(400, 225)},
		{"tall", "png", gradient(10, 20)}, // `imgcrush size` expects 10x20
		{"logo", "png", alphaGradient(100, 100)},
		{"cards/card-1", "webp", solidWithBorder(200, 150, 60)},
		{"cards/card-2", "gif", solidWithBorder(200, 150, 120)},
		{"cards/card-3", "bmp", solidWithBorder(200, 150, 180)},
		{"scan", "tiff", gradient(120, 80)},
		{"hero", "avif", gradient(160, 90)},
	}

	reg := encoder.NewRegistry()
	var n int
	for _, f := range fixtures {
		d, err := reg.Lookup(f.codec)
		if err != nil {
			panic(err)
		}
		enc, err := d.Encoder()
		if err != nil {
			fmt.Fprintf(os.Stderr, "[gen_fixtures] skip %s: %v\n", f.name, err)
			continue
		}
		b := bitmap.FromImage(f.img)
		data, err := enc.Encode(b.Pix, b.Width, b.Height, d.DefaultOptions)
		if err != nil {
			panic(fmt.Errorf("%s: %w", f.name, err))
		}
		path := filepath.Join(dir, filepath.FromSlash(f.name)+"."+d.Extension)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			panic(err)
		}
		n++
	}

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created %d fixtures in %s\n", n, dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}
