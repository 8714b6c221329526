// Package output renders legends and styled snapshots as standalone HTML
// charts for reviewing a palette without a map client.
package output

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
)

const invalidLabel = "invalid"

// LegendChart renders one bar per legend band, each as tall as the band is
// wide and filled with the band's color.
func LegendChart(w io.Writer, kind string, entries []domain.LegendEntry) error {
	labels := make([]string, 0, len(entries))
	data := make([]opts.BarData, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, e.Label)
		data = append(data, opts.BarData{
			Name:      e.Label,
			Value:     e.Max - e.Min,
			ItemStyle: &opts.ItemStyle{Color: e.Hex},
		})
	}

	bar := newBar(fmt.Sprintf("%s legend", kind), "band width")
	bar.SetXAxis(labels).AddSeries(kind, data)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render %s legend chart: %w", kind, err)
	}
	return nil
}

// SnapshotChart renders how many segments of snap fall into each legend
// band. Invalid segments get their own bar in the fallback color.
func SnapshotChart(w io.Writer, snap domain.StyledSnapshot, entries []domain.LegendEntry) error {
	counts := BandCounts(snap, entries)

	labels := make([]string, 0, len(entries)+1)
	data := make([]opts.BarData, 0, len(entries)+1)
	for i, e := range entries {
		labels = append(labels, e.Label)
		data = append(data, opts.BarData{
			Name:      e.Label,
			Value:     counts[i],
			ItemStyle: &opts.ItemStyle{Color: e.Hex},
		})
	}
	if snap.Invalid > 0 {
		labels = append(labels, invalidLabel)
		data = append(data, opts.BarData{
			Name:      invalidLabel,
			Value:     snap.Invalid,
			ItemStyle: &opts.ItemStyle{Color: domain.FallbackColor},
		})
	}

	title := fmt.Sprintf("%s %s at %s", snap.Dataset, snap.Kind, snap.TimePoint)
	bar := newBar(title, "segments")
	bar.SetXAxis(labels).AddSeries(snap.Kind, data)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render snapshot chart: %w", err)
	}
	return nil
}

// BandCounts counts the valid segments of snap per legend band. Values on a
// boundary belong to the upper band; values above the last band count in it.
func BandCounts(snap domain.StyledSnapshot, entries []domain.LegendEntry) []int {
	counts := make([]int, len(entries))
	if len(entries) == 0 {
		return counts
	}
	for _, seg := range snap.Segments {
		if !seg.Valid || seg.Value == nil {
			continue
		}
		v := *seg.Value
		idx := len(entries) - 1
		for i, e := range entries {
			if v < e.Max {
				idx = i
				break
			}
		}
		counts[idx]++
	}
	return counts
}

func newBar(title, yName string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1000px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Left:  "center",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "item",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: yName,
		}),
	)
	return bar
}
