package codec

import (
	"fmt"
	"strings"
)

// Registry is an ordered, read-only set of codec descriptors. Order
// matters: detection tries codecs in registration order.
type Registry struct {
	codecs []Descriptor
	index  map[string]int
}

// NewRegistry builds a registry from descriptors in priority order.
// Names are case-insensitive and must be unique.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		codecs: make([]Descriptor, 0, len(descs)),
		index:  make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		name := strings.ToLower(d.Name)
		if name == "" {
			return nil, fmt.Errorf("codec registry: descriptor without a name")
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("codec registry: duplicate codec %q", name)
		}
		if a := d.AutoOptimize; a != nil && a.Option == "" {
			return nil, fmt.Errorf("codec registry: %s: auto-optimize option has no name", name)
		}
		d.Name = name
		r.index[name] = len(r.codecs)
		r.codecs = append(r.codecs, d)
	}
	return r, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	i, ok := r.index[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownCodec, name, strings.Join(r.Names(), ", "))
	}
	return &r.codecs[i], nil
}

// Names returns codec names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.codecs))
	for i := range r.codecs {
		names[i] = r.codecs[i].Name
	}
	return names
}

// Descriptors returns the descriptors in registry order. The returned
// values are copies.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.codecs))
	copy(out, r.codecs)
	return out
}

// String returns a summary of registered codecs.
func (r *Registry) String() string {
	if len(r.codecs) == 0 {
		return "no codecs registered"
	}
	return fmt.Sprintf("codecs: %s", strings.Join(r.Names(), ", "))
}
