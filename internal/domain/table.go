package domain

import (
	"math"
	"time"
)

// ColorTable is a precomputed, immutable mapping from quantized intensity to
// color. Entry i covers intensities [i*step, (i+1)*step).
type ColorTable struct {
	max     float64
	step    float64
	colors  []string
	builtAt time.Time
}

func newColorTable(maxIntensity float64, stepCount int, hueRange float64) *ColorTable {
	step := maxIntensity / float64(stepCount)
	colors := make([]string, stepCount+1)
	for i := range colors {
		normalized := float64(i) / float64(stepCount)
		colors[i] = hslString(hueFor(normalized, hueRange))
	}
	return &ColorTable{
		max:     maxIntensity,
		step:    step,
		colors:  colors,
		builtAt: clock.Now(),
	}
}

// Lookup returns the color for v, clamping to [0, Max].
func (t *ColorTable) Lookup(v float64) string {
	return t.colors[t.index(v)]
}

// At returns entry i, clamping out-of-range indexes to the boundaries.
func (t *ColorTable) At(i int) string {
	if i < 0 {
		i = 0
	}
	if i >= len(t.colors) {
		i = len(t.colors) - 1
	}
	return t.colors[i]
}

func (t *ColorTable) index(v float64) int {
	v = clamp(v, 0, t.max)
	// The epsilon keeps exact multiples of step from landing one slot low
	// after floating-point division.
	i := int(math.Floor(v/t.step + 1e-9))
	if i >= len(t.colors) {
		i = len(t.colors) - 1
	}
	return i
}

// Len returns the number of entries (stepCount + 1).
func (t *ColorTable) Len() int { return len(t.colors) }

// Max returns the upper bound of the table's domain.
func (t *ColorTable) Max() float64 { return t.max }

// Step returns the intensity width of one entry.
func (t *ColorTable) Step() float64 { return t.step }

// BuiltAt returns when the table was computed.
func (t *ColorTable) BuiltAt() time.Time { return t.builtAt }

// Entries returns a copy of the table's colors in ascending intensity order.
func (t *ColorTable) Entries() []string {
	out := make([]string, len(t.colors))
	copy(out, t.colors)
	return out
}
