// Package preprocess applies an ordered chain of named image transforms
// before encoding.
package preprocess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AnyUserName/imgcrush/internal/bitmap"
	"github.com/AnyUserName/imgcrush/internal/options"
)

var (
	// ErrUnknownPreprocessor is returned when a step names an
	// unregistered transform.
	ErrUnknownPreprocessor = errors.New("unknown preprocessor")

	// ErrPreprocess wraps a failing transform.
	ErrPreprocess = errors.New("preprocess failed")
)

// Transform produces a new bitmap from pixels and merged options. It must
// not retain or modify pix.
type Transform func(pix []byte, width, height int, opts options.Options) (*bitmap.Bitmap, error)

// Preprocessor is the static record a transform plugin registers.
type Preprocessor struct {
	Name           string
	Description    string
	DefaultOptions options.Options
	// Instantiate prepares the transform. It is called once per Apply
	// for each distinct preprocessor in the chain.
	Instantiate func() (Transform, error)
}

// Step is one entry of a chain.
type Step struct {
	Name    string          `json:"name" toml:"name" yaml:"name"`
	Options options.Options `json:"options,omitempty" toml:"options" yaml:"options"`
}

// Registry holds the available preprocessors in registration order.
type Registry struct {
	list  []Preprocessor
	index map[string]int
}

// NewRegistry builds a registry. Names are case-insensitive and unique.
func NewRegistry(pps ...Preprocessor) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(pps))}
	for _, p := range pps {
		name := strings.ToLower(p.Name)
		if name == "" || p.Instantiate == nil {
			return nil, fmt.Errorf("preprocess registry: incomplete preprocessor %q", p.Name)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("preprocess registry: duplicate preprocessor %q", name)
		}
		p.Name = name
		r.index[name] = len(r.list)
		r.list = append(r.list, p)
	}
	return r, nil
}

// Lookup returns the preprocessor registered under name.
func (r *Registry) Lookup(name string) (*Preprocessor, error) {
	i, ok := r.index[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreprocessor, name)
	}
	return &r.list[i], nil
}

// List returns the registered preprocessors in order.
func (r *Registry) List() []Preprocessor {
	out := make([]Preprocessor, len(r.list))
	copy(out, r.list)
	return out
}

// Apply runs the chain left to right. Each step's options are merged over
// the preprocessor's defaults. The first failure aborts the chain and no
// partial result is returned. An empty chain returns b unchanged.
func (r *Registry) Apply(b *bitmap.Bitmap, chain []Step) (*bitmap.Bitmap, error) {
	if len(chain) == 0 {
		return b, nil
	}
	transforms := make(map[string]Transform, len(chain))

	cur := b
	for i, step := range chain {
		p, err := r.Lookup(step.Name)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		fn, ok := transforms[p.Name]
		if !ok {
			fn, err = p.Instantiate()
			if err != nil {
				return nil, fmt.Errorf("step %d (%s): %w: instantiate: %w", i+1, p.Name, ErrPreprocess, err)
			}
			transforms[p.Name] = fn
		}

		next, err := fn(cur.Pix, cur.Width, cur.Height, options.Merge(p.DefaultOptions, step.Options))
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w: %w", i+1, p.Name, ErrPreprocess, err)
		}
		if err := next.Validate(); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w: %w", i+1, p.Name, ErrPreprocess, err)
		}
		cur = next
	}
	return cur, nil
}

// ParseStep parses the CLI form "name" or "name:{relaxed json options}".
func ParseStep(s string) (Step, error) {
	name, raw, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Step{}, fmt.Errorf("preprocess step %q: missing name", s)
	}
	opts, err := options.Parse(raw)
	if err != nil {
		return Step{}, fmt.Errorf("preprocess step %q: %w", name, err)
	}
	return Step{Name: strings.ToLower(name), Options: opts}, nil
}
