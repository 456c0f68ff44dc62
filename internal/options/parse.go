package options

import (
	"fmt"
	"strings"

	"github.com/titanous/json5"
)

// Parse decodes a JSON5 object such as `{quality: 75, lossless: true,}`.
// Comments, trailing commas, unquoted keys, single-quoted strings, hex
// numbers and Infinity are accepted. Numbers decode as float64. An empty
// string yields empty options.
func Parse(s string) (Options, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Options{}, nil
	}

	var o Options
	if err := json5.Unmarshal([]byte(s), &o); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("parse options: %q is not an object", s)
	}
	return o, nil
}
