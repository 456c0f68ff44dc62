// Package options holds the loosely typed option maps used by codecs and
// preprocessors, and the layered merge that combines them with defaults.
package options

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strconv"
)

// Options maps an option name to its value. Values are whatever the
// source produced: Go literals for built-in defaults, float64/bool/string
// for parsed JSON.
type Options map[string]any

// Merge layers overrides on top of defaults and returns a new map.
// Keys present in overrides always win, including explicit zero values.
// Neither input is modified.
func Merge(defaults, overrides Options) Options {
	out := make(Options, len(defaults)+len(overrides))
	maps.Copy(out, defaults)
	maps.Copy(out, overrides)
	return out
}

// Clone returns a shallow copy.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// Keys returns the option names in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the value of key as a float64, or def if the key is absent.
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("option %q: %q is not a number", key, n)
		}
		return f, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("option %q: unsupported type %T", key, v)
}

// Int returns the value of key rounded to the nearest integer.
func (o Options) Int(key string, def int) (int, error) {
	f, err := o.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("option %q: %v is not finite", key, f)
	}
	r := math.Round(f)
	if r < math.MinInt || r >= math.MaxInt {
		return 0, fmt.Errorf("option %q: %v is out of range", key, f)
	}
	return int(r), nil
}

// Bool returns the value of key as a bool. Numbers are true when non-zero.
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		p, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("option %q: %q is not a boolean", key, b)
		}
		return p, nil
	}
	f, err := o.Float(key, 0)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}

// Text returns the value of key formatted as a string.
func (o Options) Text(key string, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
