package domain

import (
	"fmt"
	"strconv"
)

// DefaultLegendStops is the number of ramp rows shown when the caller does
// not ask for a specific count.
const DefaultLegendStops = 5

// LegendEntry is one row of a map legend.
type LegendEntry struct {
	Label string  `json:"label"`
	Color string  `json:"color"`
	Hex   string  `json:"hex"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Legend splits [0, Max] into stops equal bands and colors each band by its
// lower bound.
func (m *Mapper) Legend(stops int) []LegendEntry {
	if stops <= 0 {
		stops = DefaultLegendStops
	}
	maxIntensity := m.Max()
	width := maxIntensity / float64(stops)

	entries := make([]LegendEntry, 0, stops)
	for i := range stops {
		lo := float64(i) * width
		hi := lo + width
		sample := lo
		if m.scale.ZeroIsFallback && sample <= 0 {
			// Zero means "no data" on these scales; color the band by its
			// first real value instead.
			sample = width / 2
		}
		entries = append(entries, LegendEntry{
			Label: fmt.Sprintf("%s-%s", formatBound(lo), formatBound(hi)),
			Color: m.ColorFor(sample),
			Hex:   m.HexFor(sample),
			Min:   lo,
			Max:   hi,
		})
	}
	return entries
}

// RiskLegend returns one row per risk level with the band ClassifyRisk
// assigns to it.
func (m *Mapper) RiskLegend() []LegendEntry {
	levels := RiskLevels()
	width := m.Max() / float64(len(levels))

	entries := make([]LegendEntry, 0, len(levels))
	for i, level := range levels {
		c := ColorForRiskLevel(string(level))
		hex, _ := ToHex(c)
		entries = append(entries, LegendEntry{
			Label: LabelForRiskLevel(string(level)),
			Color: c,
			Hex:   hex,
			Min:   float64(i) * width,
			Max:   float64(i+1) * width,
		})
	}
	return entries
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
