package codec

import "errors"

var (
	// ErrUnsupportedFormat is returned when no registered detector matches
	// the input buffer.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnknownCodec is returned when a codec name is not registered.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrDecode wraps failures reported by a codec's decoder.
	ErrDecode = errors.New("decode failed")

	// ErrEncode wraps failures reported by a codec's encoder.
	ErrEncode = errors.New("encode failed")

	// ErrNoDecoder is returned when a codec cannot decode.
	ErrNoDecoder = errors.New("codec has no decoder")

	// ErrNoEncoder is returned when a codec cannot encode.
	ErrNoEncoder = errors.New("codec has no encoder")

	// ErrNotOptimizable is returned when automatic quality search is
	// requested for a codec that declares no tunable option.
	ErrNotOptimizable = errors.New("codec does not support automatic optimization")
)
