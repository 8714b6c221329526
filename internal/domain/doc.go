// Package domain maps road intensities onto map styling.
//
// # Intensity kinds
//
// Two kinds arrive from the analysis backend:
//
//	traffic:       vehicles entering a link per 450 s interval (MATSim output).
//	               0 means "no vehicles observed" and renders gray.
//	vulnerability: road vulnerability index, 0 (robust) to 10000 (critical).
//
// Each kind is described by a [Scale]: its clamp maximum, the hue at zero,
// an optional quantization step, and the width ramp.
//
// # Colors
//
// Colors are HSL strings at full saturation and half lightness,
// "hsl(H, 100%, 50%)", with H = floor((1 - v/max) * hueRange). Traffic uses a
// hue range of 240 (blue to red), vulnerability 120 (green to red).
//
// Vulnerability lookups go through a precomputed [ColorTable] with one entry
// per 10 units. The table is rebuilt whenever a data set arrives with a new
// maximum and is swapped in atomically; it is never edited in place.
//
// # Invalid input
//
// There is exactly one failure class: invalid intensity (non-numeric, NaN,
// negative). It never surfaces as an error. Colors fall back to
// [FallbackColor] (#CCCCCC) and widths to the scale's minimum.
//
// # Risk levels
//
// Five fixed tags (lowest .. highest) carry a static color and label,
// independent of the continuous ramp. [Mapper.ClassifyRisk] assigns a
// vulnerability score to a tag by splitting [0, max] into five equal bands.
package domain
