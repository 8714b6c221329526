package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RawEvent represents an unprocessed message from the source.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Segment is one road link's measurement at a time point. Value is left
// untyped so that non-numeric upstream values reach the fallback path instead
// of failing the whole snapshot.
type Segment struct {
	RoadID string `json:"road_id"`
	Value  any    `json:"value"`
}

// Snapshot is a data-set load event: every segment's intensity of one kind at
// one time point.
type Snapshot struct {
	Dataset   string    `json:"dataset"`
	Kind      string    `json:"kind"`
	TimePoint string    `json:"time_point"`
	Max       float64   `json:"max,omitempty"`
	Segments  []Segment `json:"segments"`
}

// StyledSegment is a Segment with its rendering attributes resolved.
type StyledSegment struct {
	RoadID    string    `json:"road_id"`
	Value     *float64  `json:"value"`
	Valid     bool      `json:"valid"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	RiskLevel RiskLevel `json:"risk_level,omitempty"`
}

// StyledSnapshot is the output of styling a Snapshot.
type StyledSnapshot struct {
	Dataset   string          `json:"dataset"`
	Kind      string          `json:"kind"`
	TimePoint string          `json:"time_point"`
	Max       float64         `json:"max"`
	Segments  []StyledSegment `json:"segments"`
	Invalid   int             `json:"invalid"`
	StyledAt  time.Time       `json:"styled_at"`
}

// ParseSnapshot decodes a snapshot message. Numbers are kept as json.Number
// so integer counts survive without float rounding until IntensityOf.
func ParseSnapshot(raw RawEvent) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	s.TimePoint = strings.TrimSpace(s.TimePoint)

	if s.Kind == "" {
		return Snapshot{}, errors.New("parse snapshot: kind is required")
	}
	if s.TimePoint == "" {
		return Snapshot{}, errors.New("parse snapshot: time_point is required")
	}
	if s.Max < 0 || !isFinite(s.Max) {
		return Snapshot{}, fmt.Errorf("parse snapshot: invalid max %v", s.Max)
	}
	return s, nil
}

// StyleSnapshot resolves color, width and (for vulnerability) risk level of
// every segment. Invalid values are styled with the fallbacks and counted.
func StyleSnapshot(s Snapshot, m *Mapper) StyledSnapshot {
	out := StyledSnapshot{
		Dataset:   s.Dataset,
		Kind:      s.Kind,
		TimePoint: s.TimePoint,
		Max:       m.Max(),
		Segments:  make([]StyledSegment, 0, len(s.Segments)),
		StyledAt:  clock.Now(),
	}

	for _, seg := range s.Segments {
		styled := StyledSegment{RoadID: seg.RoadID}
		v, ok := IntensityOf(seg.Value)
		if ok && v < 0 {
			ok = false
		}
		if !ok {
			styled.Color = m.scale.Fallback
			styled.Width = m.scale.MinWidth
			out.Invalid++
			out.Segments = append(out.Segments, styled)
			continue
		}

		styled.Value = &v
		styled.Valid = true
		styled.Color = m.ColorFor(v)
		styled.Width = m.WidthFor(v)
		if s.Kind == KindVulnerability {
			styled.RiskLevel, _ = m.ClassifyRisk(v)
		}
		out.Segments = append(out.Segments, styled)
	}
	return out
}

// SerializeStyledSnapshot marshals a styled snapshot keyed by dataset, so
// every time point of a dataset lands on one partition in order.
func SerializeStyledSnapshot(s StyledSnapshot) (OutputEvent, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize styled snapshot: %w", err)
	}
	return OutputEvent{
		Key:   []byte(s.Dataset),
		Value: data,
		Headers: map[string]string{
			"kind":       s.Kind,
			"time_point": s.TimePoint,
			"styled_at":  s.StyledAt.Format(time.RFC3339),
		},
	}, nil
}
