// Command validate checks the mock data fixtures end to end: the raw snapshot
// JSON against its source CSV, the styling invariants of every snapshot, and
// optionally a styled fixture against a fresh styling run.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/traffic_flow_450s.csv \
//	  -snapshots data/mock/traffic_snapshots_450s.json \
//	  -styled data/mock/traffic_styled_450s.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/fixture"
)

// styledAt matches the fixed clock genmock styles with.
var styledAt = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "link-by-interval pivot CSV")
	snapshotsPath := flag.String("snapshots", "", "raw snapshot JSON fixture")
	styledPath := flag.String("styled", "", "styled snapshot JSON fixture (optional)")
	flag.Parse()

	if *csvPath == "" || *snapshotsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *snapshotsPath, *styledPath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, snapshotsPath, styledPath string) int {
	restore := domain.SetClock(clockwork.NewFakeClockAt(styledAt))
	defer restore()

	fmt.Println("=== Road Intensity Fixture Validation ===")
	fmt.Println()

	table, err := fixture.LoadFlowTable(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}

	snapshots, err := loadJSON[domain.Snapshot](snapshotsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load snapshots: %v\n", err)
		return 1
	}

	registry := domain.DefaultRegistry()
	phases := []*phase{
		validateParity(table, snapshots),
		validateStyling(registry, snapshots),
	}

	if styledPath != "" {
		styled, err := loadJSON[domain.StyledSnapshot](styledPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load styled fixture: %v\n", err)
			return 1
		}
		phases = append(phases, validateStyledFixture(registry, snapshots, styled))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d links x %d time points in CSV, %d snapshots\n",
		len(table.Rows), len(table.TimePoints), len(snapshots))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: CSV parity ──
// Every CSV cell appears in the snapshot for its column with the same value.

func validateParity(table *fixture.FlowTable, snapshots []domain.Snapshot) *phase {
	p := &phase{name: "Phase 1: Snapshot Parity (JSON vs CSV)"}

	if len(snapshots) != len(table.TimePoints) {
		p.errorf("time points: CSV has %d, fixture has %d", len(table.TimePoints), len(snapshots))
		return p
	}

	for j, s := range snapshots {
		if s.TimePoint != table.TimePoints[j] {
			p.errorf("snapshot %d: time point %q, CSV column %q", j, s.TimePoint, table.TimePoints[j])
		}
		if len(s.Segments) != len(table.Rows) {
			p.errorf("time point %s: CSV has %d links, snapshot has %d", s.TimePoint, len(table.Rows), len(s.Segments))
			continue
		}
		for i, row := range table.Rows {
			seg := s.Segments[i]
			if seg.RoadID != row.LinkID {
				p.errorf("time point %s line %d: link %q, snapshot road %q", s.TimePoint, row.Line, row.LinkID, seg.RoadID)
			}
			want, wantOK := domain.ParseIntensity(row.Values[j])
			got, gotOK := domain.IntensityOf(seg.Value)
			if wantOK != gotOK || (wantOK && want != got) {
				p.errorf("time point %s line %d: CSV %q, snapshot %v", s.TimePoint, row.Line, row.Values[j], seg.Value)
			}
		}
	}
	return p
}

// ── Phase 2: Styling invariants ──
// Colors are well formed, ordered by value, and widths stay in bounds.

func validateStyling(registry *domain.Registry, snapshots []domain.Snapshot) *phase {
	p := &phase{name: "Phase 2: Styling Invariants"}

	for _, s := range snapshots {
		m, ok := registry.Get(s.Kind)
		if !ok {
			p.errorf("time point %s: unknown kind %q", s.TimePoint, s.Kind)
			continue
		}
		styled := domain.StyleSnapshot(s, m)
		scale := m.Scale()

		type huePoint struct {
			value float64
			hue   int
		}
		var hues []huePoint

		for _, seg := range styled.Segments {
			if !domain.IsValidColor(seg.Color) {
				p.errorf("time point %s road %s: malformed color %q", s.TimePoint, seg.RoadID, seg.Color)
			}
			if seg.Width < scale.MinWidth || seg.Width > scale.MaxWidth {
				p.errorf("time point %s road %s: width %v outside [%v, %v]", s.TimePoint, seg.RoadID, seg.Width, scale.MinWidth, scale.MaxWidth)
			}
			if !seg.Valid {
				if seg.Color != scale.Fallback {
					p.errorf("time point %s road %s: invalid value styled %q, want fallback", s.TimePoint, seg.RoadID, seg.Color)
				}
				continue
			}
			if hue, ok := domain.HueOf(seg.Color); ok {
				hues = append(hues, huePoint{*seg.Value, hue})
			}
		}

		sort.Slice(hues, func(i, j int) bool { return hues[i].value < hues[j].value })
		for i := 1; i < len(hues); i++ {
			if hues[i].hue > hues[i-1].hue {
				p.errorf("time point %s: hue rises from %d at %v to %d at %v",
					s.TimePoint, hues[i-1].hue, hues[i-1].value, hues[i].hue, hues[i].value)
			}
		}
	}
	return p
}

// ── Phase 3: Styled fixture ──
// The committed styled fixture matches what the current code produces.

func validateStyledFixture(registry *domain.Registry, snapshots []domain.Snapshot, styled []domain.StyledSnapshot) *phase {
	p := &phase{name: "Phase 3: Styled Fixture (JSON vs restyle)"}

	if len(styled) != len(snapshots) {
		p.errorf("styled fixture has %d snapshots, raw fixture has %d", len(styled), len(snapshots))
		return p
	}
	for i, s := range snapshots {
		m, ok := registry.Get(s.Kind)
		if !ok {
			continue
		}
		want := domain.StyleSnapshot(s, m)
		if diff := cmp.Diff(want, styled[i], cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateApproxTime(time.Second)); diff != "" {
			p.errorf("time point %s mismatch (-restyled +fixture):\n%s", s.TimePoint, diff)
		}
	}
	return p
}
