// Command genmock reads simulation traffic-flow tables and generates the
// snapshot fixtures used by the pipeline tests. It styles every snapshot with
// the real domain package so the styled fixture matches pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/traffic_flow_450s.csv \
//	  -raw-out data/mock/traffic_snapshots_450s.json \
//	  -styled-out data/mock/traffic_styled_450s.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/fixture"
)

// styledAt is the fixed StyledAt timestamp written into styled fixtures.
var styledAt = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "link-by-interval pivot CSV")
	kind := flag.String("kind", domain.KindTraffic, "intensity kind of the table")
	dataset := flag.String("dataset", "", "dataset name (defaults to the CSV file name)")
	start := flag.String("start", "", "relabel second offsets as clock times from this HH:MM (e.g. 07:00)")
	rawOut := flag.String("raw-out", "", "output path for the raw snapshot fixture")
	styledOut := flag.String("styled-out", "", "output path for the styled snapshot fixture")
	flag.Parse()

	if *csvPath == "" || *rawOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -raw-out")
	}

	table, err := fixture.LoadFlowTable(*csvPath)
	if err != nil {
		return err
	}
	if *start != "" {
		t0, err := time.Parse("15:04", *start)
		if err != nil {
			return fmt.Errorf("invalid -start %q: %w", *start, err)
		}
		table.RelabelTimePoints(t0)
	}
	if *dataset == "" {
		*dataset = fixture.DatasetName(*csvPath)
	}

	snapshots := table.Snapshots(*dataset, *kind)
	log.Printf("%s: %d links x %d time points", *dataset, len(table.Rows), len(snapshots))

	if err := writeJSON(*rawOut, snapshots); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if *styledOut == "" {
		return nil
	}

	// Set a fixed clock for reproducible StyledAt timestamps.
	restore := domain.SetClock(clockwork.NewFakeClockAt(styledAt))
	defer restore()

	m, ok := domain.DefaultRegistry().Get(*kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", *kind)
	}
	styled := make([]domain.StyledSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		styled = append(styled, domain.StyleSnapshot(s, m))
	}
	if err := writeJSON(*styledOut, styled); err != nil {
		return fmt.Errorf("writing styled fixture: %w", err)
	}
	log.Printf("wrote styled fixture: %s", *styledOut)

	printStats(styled)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type colorCount struct {
	color string
	count int
}

func printStats(styled []domain.StyledSnapshot) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	for _, s := range styled {
		counts := map[string]int{}
		for _, seg := range s.Segments {
			counts[seg.Color]++
		}
		cc := make([]colorCount, 0, len(counts))
		for c, n := range counts {
			cc = append(cc, colorCount{c, n})
		}
		sort.Slice(cc, func(i, j int) bool {
			if cc[i].count != cc[j].count {
				return cc[i].count > cc[j].count
			}
			return cc[i].color < cc[j].color
		})

		fmt.Printf("time point %s: %d segments, %d invalid, colors:", s.TimePoint, len(s.Segments), s.Invalid)
		for _, c := range cc {
			fmt.Printf(" %s=%d", c.color, c.count)
		}
		fmt.Println()
	}
}
