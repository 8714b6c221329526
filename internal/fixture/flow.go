// Package fixture reads simulation output tables into snapshots. It backs the
// genmock and validate commands and the pipeline's fixture tests.
package fixture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
)

// FlowTable is a link-by-interval pivot: one row per road link, one column
// per time bucket. Cells are kept as text so malformed values survive until
// styling.
type FlowTable struct {
	TimePoints []string
	Rows       []FlowRow
}

// FlowRow is one link's values, aligned with FlowTable.TimePoints.
type FlowRow struct {
	Line   int
	LinkID string
	Values []string
}

// LoadFlowTable reads a pivot CSV from disk.
func LoadFlowTable(path string) (*FlowTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadFlowTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadFlowTable parses a pivot CSV whose first column holds link ids and
// whose header names each time bucket. Short rows are padded with empty
// cells.
func ReadFlowTable(r io.Reader) (*FlowTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) < 2 {
		return nil, errors.New("no data rows")
	}
	header := all[0]
	if len(header) < 2 {
		return nil, errors.New("header has no time columns")
	}

	t := &FlowTable{TimePoints: make([]string, 0, len(header)-1)}
	for _, h := range header[1:] {
		t.TimePoints = append(t.TimePoints, strings.TrimSpace(h))
	}

	for i, row := range all[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		values := make([]string, len(t.TimePoints))
		for j := range values {
			if j+1 < len(row) {
				values[j] = strings.TrimSpace(row[j+1])
			}
		}
		t.Rows = append(t.Rows, FlowRow{Line: i + 2, LinkID: strings.TrimSpace(row[0]), Values: values})
	}
	return t, nil
}

// Snapshots returns one snapshot per time column. Numeric cells become
// numbers; anything else is passed through as text.
func (t *FlowTable) Snapshots(dataset, kind string) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(t.TimePoints))
	for j, tp := range t.TimePoints {
		s := domain.Snapshot{
			Dataset:   dataset,
			Kind:      kind,
			TimePoint: tp,
			Segments:  make([]domain.Segment, 0, len(t.Rows)),
		}
		for _, row := range t.Rows {
			var value any = row.Values[j]
			if v, ok := domain.ParseIntensity(row.Values[j]); ok {
				value = v
			}
			s.Segments = append(s.Segments, domain.Segment{RoadID: row.LinkID, Value: value})
		}
		out = append(out, s)
	}
	return out
}

// RelabelTimePoints replaces second-offset column names with wall-clock
// labels counted from start, e.g. "450" from 07:00 becomes "07:07:30".
// Columns that are not whole seconds keep their name.
func (t *FlowTable) RelabelTimePoints(start time.Time) {
	for i, tp := range t.TimePoints {
		secs, err := strconv.Atoi(tp)
		if err != nil {
			continue
		}
		t.TimePoints[i] = start.Add(time.Duration(secs) * time.Second).Format(time.TimeOnly)
	}
}

// DatasetName derives a dataset name from a file path.
func DatasetName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
