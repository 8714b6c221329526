package domain

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// maxTableEntries bounds the memory a single rebuild may allocate.
const maxTableEntries = 1 << 20

var (
	// ErrInvalidMax is returned by BuildTable for a non-positive or non-finite maximum.
	ErrInvalidMax = errors.New("table maximum must be positive and finite")

	// ErrNoQuantization is returned by BuildTable when neither a step count
	// nor a scale step is available.
	ErrNoQuantization = errors.New("scale has no quantization step")

	// ErrTableTooLarge is returned by BuildTable when the table would exceed
	// maxTableEntries.
	ErrTableTooLarge = fmt.Errorf("table exceeds %d entries", maxTableEntries)
)

// Mapper converts intensities of one kind into colors and widths. Lookups
// are safe for concurrent use; BuildTable publishes a new table atomically
// and readers see either the old or the new table, never a mix.
type Mapper struct {
	scale Scale
	table atomic.Pointer[ColorTable]
}

// NewMapper validates the scale and returns a mapper using the direct
// formula until BuildTable is called.
func NewMapper(s Scale) (*Mapper, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{scale: s}, nil
}

// MustNewMapper is NewMapper for the built-in scales.
func MustNewMapper(s Scale) *Mapper {
	m, err := NewMapper(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Mapper) Kind() string { return m.scale.Kind }

func (m *Mapper) Scale() Scale { return m.scale }

// BuildTable precomputes stepCount+1 colors spanning [0, maxIntensity] and
// replaces any existing table. A stepCount <= 0 derives the count as
// ceil(maxIntensity / Scale.Step); entries stay evenly spaced, so when
// maxIntensity is not a multiple of Scale.Step the table step shrinks to
// maxIntensity/stepCount (max 15 with step 10 gives two steps of 7.5).
// Tables above maxTableEntries are rejected and the current one is kept.
func (m *Mapper) BuildTable(maxIntensity float64, stepCount int) error {
	if !isFinite(maxIntensity) || maxIntensity <= 0 {
		return fmt.Errorf("build %s table: %w", m.scale.Kind, ErrInvalidMax)
	}
	if stepCount <= 0 {
		if m.scale.Step <= 0 {
			return fmt.Errorf("build %s table: %w", m.scale.Kind, ErrNoQuantization)
		}
		// Bound in float first; the int conversion overflows for huge ratios.
		steps := math.Ceil(maxIntensity / m.scale.Step)
		if steps >= maxTableEntries {
			return fmt.Errorf("build %s table: %w", m.scale.Kind, ErrTableTooLarge)
		}
		stepCount = int(steps)
	}
	if stepCount >= maxTableEntries {
		return fmt.Errorf("build %s table: %w", m.scale.Kind, ErrTableTooLarge)
	}
	m.table.Store(newColorTable(maxIntensity, stepCount, m.scale.HueRange))
	return nil
}

// Reset drops the table; later lookups use the direct formula.
func (m *Mapper) Reset() {
	m.table.Store(nil)
}

// Table returns the current table, or nil when none has been built.
func (m *Mapper) Table() *ColorTable {
	return m.table.Load()
}

// Max returns the upper bound of the active domain: the table's maximum when
// a table exists, otherwise the scale's.
func (m *Mapper) Max() float64 {
	if t := m.table.Load(); t != nil {
		return t.Max()
	}
	return m.scale.Max
}

// ColorFor returns the HSL color for v. NaN and negative values, and zero
// for scales that treat zero as missing, yield the fallback color. Values
// above the maximum clamp to it.
func (m *Mapper) ColorFor(v float64) string {
	if math.IsNaN(v) || v < 0 {
		return m.scale.Fallback
	}
	if m.scale.ZeroIsFallback && v <= 0 {
		return m.scale.Fallback
	}
	if t := m.table.Load(); t != nil {
		return t.Lookup(v)
	}
	normalized := clamp(v, 0, m.scale.Max) / m.scale.Max
	return hslString(hueFor(normalized, m.scale.HueRange))
}

// ColorForAny is ColorFor behind IntensityOf validation.
func (m *Mapper) ColorForAny(v any) string {
	f, ok := IntensityOf(v)
	if !ok {
		return m.scale.Fallback
	}
	return m.ColorFor(f)
}

// HexFor is ColorFor rendered as #rrggbb.
func (m *Mapper) HexFor(v float64) string {
	hex, err := ToHex(m.ColorFor(v))
	if err != nil {
		// Scale.Validate guarantees the fallback parses, and ColorFor only
		// emits hslString output otherwise.
		return m.scale.Fallback
	}
	return hex
}

// WidthFor returns the rendering width for v.
func (m *Mapper) WidthFor(v float64) float64 {
	return m.scale.WidthFor(v)
}

// WidthForAny is WidthFor behind IntensityOf validation.
func (m *Mapper) WidthForAny(v any) float64 {
	f, ok := IntensityOf(v)
	if !ok {
		return m.scale.MinWidth
	}
	return m.WidthFor(f)
}

// ClassifyRisk assigns v to one of five equal bands over [0, Max]. Invalid
// input reports false.
func (m *Mapper) ClassifyRisk(v float64) (RiskLevel, bool) {
	if math.IsNaN(v) || v < 0 {
		return "", false
	}
	levels := RiskLevels()
	band := int(math.Floor(clamp(v, 0, m.Max()) / m.Max() * float64(len(levels))))
	if band >= len(levels) {
		band = len(levels) - 1
	}
	return levels[band], true
}
