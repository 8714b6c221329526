package domain

import (
	"errors"
	"fmt"
	"math"
)

// Intensity kinds understood by the service.
const (
	KindTraffic       = "traffic"
	KindVulnerability = "vulnerability"
)

// FallbackColor is the neutral gray returned for any invalid intensity or
// unknown risk tag.
const FallbackColor = "#CCCCCC"

// Scale holds the configured parameters of one intensity kind.
type Scale struct {
	Kind string

	// Max is the clamp ceiling and the normalization constant of the direct
	// colour formula.
	Max float64

	// HueRange is the hue at intensity 0; hue falls linearly to 0 (red) at Max.
	HueRange float64

	// Step is the quantization step of the precomputed table. Zero disables
	// table building and every lookup uses the direct formula.
	Step float64

	Fallback string

	// ZeroIsFallback treats intensities <= 0 as "no data" rather than the
	// bottom of the ramp.
	ZeroIsFallback bool

	MinWidth     float64
	MaxWidth     float64
	WidthPerUnit float64
}

// TrafficScale maps vehicle counts per interval onto a blue-to-red ramp.
func TrafficScale() Scale {
	return Scale{
		Kind:           KindTraffic,
		Max:            60,
		HueRange:       240,
		Fallback:       FallbackColor,
		ZeroIsFallback: true,
		MinWidth:       2,
		MaxWidth:       10,
		WidthPerUnit:   1.0 / 15,
	}
}

// VulnerabilityScale maps road vulnerability scores onto a green-to-red ramp
// backed by a table quantized in steps of 10.
func VulnerabilityScale() Scale {
	return Scale{
		Kind:         KindVulnerability,
		Max:          10000,
		HueRange:     120,
		Step:         10,
		Fallback:     FallbackColor,
		MinWidth:     1,
		MaxWidth:     6,
		WidthPerUnit: 0.0005,
	}
}

// Validate reports the first parameter that makes the scale unusable.
func (s Scale) Validate() error {
	switch {
	case s.Kind == "":
		return errors.New("scale kind is required")
	case !isFinite(s.Max) || s.Max <= 0:
		return fmt.Errorf("scale %s: max must be positive, got %v", s.Kind, s.Max)
	case !isFinite(s.HueRange) || s.HueRange < 0 || s.HueRange > 360:
		return fmt.Errorf("scale %s: hue range must be within [0, 360], got %v", s.Kind, s.HueRange)
	case !isFinite(s.Step) || s.Step < 0:
		return fmt.Errorf("scale %s: step must not be negative, got %v", s.Kind, s.Step)
	case !IsValidColor(s.Fallback):
		return fmt.Errorf("scale %s: invalid fallback color %q", s.Kind, s.Fallback)
	case s.MinWidth < 0 || s.MaxWidth < s.MinWidth:
		return fmt.Errorf("scale %s: width range [%v, %v] is invalid", s.Kind, s.MinWidth, s.MaxWidth)
	case !isFinite(s.WidthPerUnit) || s.WidthPerUnit < 0:
		return fmt.Errorf("scale %s: width per unit must not be negative", s.Kind)
	}
	return nil
}

// WidthFor maps an intensity to a line width within [MinWidth, MaxWidth].
// NaN and negative input yield MinWidth.
func (s Scale) WidthFor(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return s.MinWidth
	}
	return clamp(s.MinWidth+v*s.WidthPerUnit, s.MinWidth, s.MaxWidth)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
