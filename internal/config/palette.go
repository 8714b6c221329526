package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
)

// Palette is a TOML file overriding scale parameters per kind:
//
//	[scales.vulnerability]
//	max = 12000
//	step = 10
//	hue_range = 120
//	fallback = "#CCCCCC"
type Palette struct {
	Scales map[string]ScaleOverride `toml:"scales"`
}

// ScaleOverride holds the fields a palette may set; nil fields keep the
// configured value.
type ScaleOverride struct {
	Max            *float64 `toml:"max"`
	HueRange       *float64 `toml:"hue_range"`
	Step           *float64 `toml:"step"`
	Fallback       *string  `toml:"fallback"`
	ZeroIsFallback *bool    `toml:"zero_is_fallback"`
	MinWidth       *float64 `toml:"min_width"`
	MaxWidth       *float64 `toml:"max_width"`
	WidthPerUnit   *float64 `toml:"width_per_unit"`
}

var knownKinds = map[string]bool{
	domain.KindTraffic:       true,
	domain.KindVulnerability: true,
}

// LoadPalette decodes and validates a palette file. Unknown keys and kinds
// are rejected so typos do not silently fall back to defaults.
func LoadPalette(path string) (*Palette, error) {
	var p Palette
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("decode palette %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("palette %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	for kind := range p.Scales {
		if !knownKinds[kind] {
			return nil, fmt.Errorf("palette %s: unknown scale kind %q", path, kind)
		}
	}
	return &p, nil
}

// Apply overlays the palette's settings for s.Kind onto s.
func (p *Palette) Apply(s domain.Scale) domain.Scale {
	o, ok := p.Scales[s.Kind]
	if !ok {
		return s
	}
	if o.Max != nil {
		s.Max = *o.Max
	}
	if o.HueRange != nil {
		s.HueRange = *o.HueRange
	}
	if o.Step != nil {
		s.Step = *o.Step
	}
	if o.Fallback != nil {
		s.Fallback = *o.Fallback
	}
	if o.ZeroIsFallback != nil {
		s.ZeroIsFallback = *o.ZeroIsFallback
	}
	if o.MinWidth != nil {
		s.MinWidth = *o.MinWidth
	}
	if o.MaxWidth != nil {
		s.MaxWidth = *o.MaxWidth
	}
	if o.WidthPerUnit != nil {
		s.WidthPerUnit = *o.WidthPerUnit
	}
	return s
}
