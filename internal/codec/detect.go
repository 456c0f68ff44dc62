package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AnyUserName/imgcrush/internal/hasher"
)

// ProbeSize is the number of leading bytes inspected by Detect.
const ProbeSize = 16

// Probe maps each of the first ProbeSize bytes of buf to the rune with the
// same value (0x00–0xFF). Detector patterns therefore match raw byte
// values, written as \x{FF} escapes, with no UTF-8 decoding involved.
func Probe(buf []byte) string {
	n := min(len(buf), ProbeSize)
	var sb strings.Builder
	sb.Grow(n * 2)
	for _, b := range buf[:n] {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

// Signature compiles a detector pattern. The pattern is matched against a
// Probe string, so `.` should be used with the (?s) flag when a wildcard
// byte may be 0x0A.
func Signature(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

// Detect returns the name of the first codec, in registry order, with a
// detector matching buf.
func (r *Registry) Detect(buf []byte) (string, error) {
	probe := Probe(buf)
	for i := range r.codecs {
		for _, re := range r.codecs[i].Detectors {
			if re.MatchString(probe) {
				return r.codecs[i].Name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: buffer %s", ErrUnsupportedFormat, hasher.Identity(buf))
}
