// Package profile holds named compression presets and loads them from
// TOML or YAML config files.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AnyUserName/imgcrush/internal/optimizer"
	"github.com/AnyUserName/imgcrush/internal/options"
	"github.com/AnyUserName/imgcrush/internal/preprocess"
	"github.com/BurntSushi/toml"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Mode values.
const (
	ModeFixed = "fixed"
	ModeAuto  = "auto"
)

// Profile defines compression parameters for a target use.
type Profile struct {
	Name  string `json:"name" toml:"name" yaml:"name"`
	Codec string `json:"codec" toml:"codec" yaml:"codec"`
	// Mode is "fixed" or "auto"; empty inherits.
	Mode      string              `json:"mode" toml:"mode" yaml:"mode"`
	Options   options.Options     `json:"options" toml:"options" yaml:"options"`
	Optimizer optimizer.Overrides `json:"optimizer" toml:"optimizer" yaml:"optimizer"`
	Pre       []preprocess.Step   `json:"pre" toml:"pre" yaml:"pre"`
	Suffix    string              `json:"suffix" toml:"suffix" yaml:"suffix"`
	Hash      bool                `json:"hash" toml:"hash" yaml:"hash"`
	Workers   int                 `json:"workers" toml:"workers" yaml:"workers"`
	// Extends names a built-in profile the file is layered over.
	Extends string `json:"extends" toml:"extends" yaml:"extends"`
}

// Default is the profile used when none is named.
const Default = "web"

func float(v float64) *float64 { return &v }

// Built-in profiles.
var profiles = map[string]Profile{
	"web": {
		Name:  "web",
		Codec: "webp",
		Mode:  ModeAuto,
	},
	"web-hq": {
		Name:      "web-hq",
		Codec:     "webp",
		Mode:      ModeAuto,
		Optimizer: optimizer.Overrides{TargetDistance: float(0.8)},
	},
	"photo": {
		Name:  "photo",
		Codec: "jpegli",
		Mode:  ModeAuto,
	},
	"avif": {
		Name:  "avif",
		Codec: "avif",
		Mode:  ModeAuto,
	},
	"thumbnail": {
		Name:    "thumbnail",
		Codec:   "webp",
		Mode:    ModeFixed,
		Options: options.Options{"quality": 70},
		Pre:     []preprocess.Step{{Name: "resize", Options: options.Options{"width": 320}}},
		Suffix:  ".thumb",
	},
	"lossless": {
		Name:    "lossless",
		Codec:   "webp",
		Mode:    ModeFixed,
		Options: options.Options{"lossless": true, "exact": true},
	},
	"palette": {
		Name:    "palette",
		Codec:   "png",
		Mode:    ModeFixed,
		Options: options.Options{"compression": "best"},
		Pre:     []preprocess.Step{{Name: "quant", Options: options.Options{"numColors": 128}}},
	},
}

// Get returns a built-in profile by name.
func Get(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	p.Options = p.Options.Clone()
	p.Pre = append([]preprocess.Step(nil), p.Pre...)
	return p, nil
}

// Names returns the built-in profile names, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads a profile from a .toml, .yaml, .yml, .json or .jsonc file. A file that
// sets extends is layered over that built-in profile.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return Profile{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Profile{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".json", ".jsonc":
		// JSON with comments and trailing commas.
		std, err := hujson.Standardize(data)
		if err != nil {
			return Profile{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := json.Unmarshal(std, &p); err != nil {
			return Profile{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return Profile{}, fmt.Errorf("config %s: unsupported extension %q (want .toml, .yaml, .yml, .json or .jsonc)", path, ext)
	}
	if err := p.validate(); err != nil {
		return Profile{}, fmt.Errorf("config %s: %w", path, err)
	}

	if p.Extends == "" {
		return p, nil
	}
	base, err := Get(p.Extends)
	if err != nil {
		return Profile{}, fmt.Errorf("config %s: %w", path, err)
	}
	return base.Overlay(p), nil
}

// Overlay returns p with every field set in o taking precedence.
// Options are merged key by key; a non-empty chain replaces the chain.
func (p Profile) Overlay(o Profile) Profile {
	if o.Name != "" {
		p.Name = o.Name
	}
	if o.Codec != "" && !strings.EqualFold(o.Codec, p.Codec) {
		// Options of another codec do not carry over.
		p.Codec = o.Codec
		p.Options = nil
	}
	if o.Mode != "" {
		p.Mode = o.Mode
	}
	p.Options = options.Merge(p.Options, o.Options)
	p.Optimizer = o.Optimizer.Merge(p.Optimizer)
	if len(o.Pre) > 0 {
		p.Pre = o.Pre
	}
	if o.Suffix != "" {
		p.Suffix = o.Suffix
	}
	p.Hash = p.Hash || o.Hash
	if o.Workers > 0 {
		p.Workers = o.Workers
	}
	p.Extends = ""
	return p
}

func (p Profile) validate() error {
	switch p.Mode {
	case "", ModeFixed, ModeAuto:
	default:
		return fmt.Errorf("mode %q: want %q or %q", p.Mode, ModeFixed, ModeAuto)
	}
	for i, s := range p.Pre {
		if s.Name == "" {
			return fmt.Errorf("pre[%d]: missing name", i)
		}
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers %d < 0", p.Workers)
	}
	return nil
}
