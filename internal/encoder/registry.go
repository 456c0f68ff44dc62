package encoder

import (
	"github.com/AnyUserName/imgcrush/internal/codec"
)

// Descriptors returns the built-in codecs in detection priority order.
func Descriptors() []codec.Descriptor {
	return []codec.Descriptor{
		JPEG(),
		JPEGLI(),
		PNG(),
		WebP(),
		AVIF(),
		GIF(),
		BMP(),
		TIFF(),
	}
}

// NewRegistry creates the default codec registry. Capabilities are not
// acquired here; external tools such as avifenc are only looked up when
// a pipeline first needs them.
func NewRegistry() *codec.Registry {
	r, err := codec.NewRegistry(Descriptors()...)
	if err != nil {
		panic(err) // static table
	}
	return r
}
