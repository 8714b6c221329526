package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleTransformer_WithMockTrafficData(t *testing.T) {
	transformer := pipeline.NewTransformer(domain.DefaultRegistry(), discardLogger(), newTestMetrics())
	snapshots := readTrafficSnapshots(t)
	require.Len(t, snapshots, 4)

	for _, s := range snapshots {
		t.Run("time point "+s.TimePoint, func(t *testing.T) {
			raw := makeRawEvent(t, s)

			out, err := transformer.Transform(context.Background(), raw)
			require.NoError(t, err)
			assert.Equal(t, "traffic_flow_450s", out.Dataset)
			assert.Equal(t, s.TimePoint, out.TimePoint)
			assert.Zero(t, out.Invalid)
			require.Len(t, out.Segments, len(s.Segments))

			for i, seg := range out.Segments {
				require.True(t, seg.Valid, "segment %s", seg.RoadID)
				require.NotNil(t, seg.Value)
				assert.True(t, domain.IsValidColor(seg.Color), "segment %s: %q", seg.RoadID, seg.Color)
				assert.GreaterOrEqual(t, seg.Width, 2.0)
				assert.LessOrEqual(t, seg.Width, 10.0)
				assert.Equal(t, s.Segments[i].RoadID, seg.RoadID)
				if *seg.Value == 0 {
					assert.Equal(t, domain.FallbackColor, seg.Color, "idle links render gray")
				}
				assert.Empty(t, seg.RiskLevel)
			}
		})
	}
}

func TestStyleTransformer_MockTrafficPeak(t *testing.T) {
	transformer := pipeline.NewTransformer(domain.DefaultRegistry(), discardLogger(), newTestMetrics())
	snapshots := readTrafficSnapshots(t)

	last := snapshots[len(snapshots)-1]
	require.Equal(t, "1350", last.TimePoint)

	out, err := transformer.Transform(context.Background(), makeRawEvent(t, last))
	require.NoError(t, err)

	byRoad := make(map[string]domain.StyledSegment, len(out.Segments))
	for _, seg := range out.Segments {
		byRoad[seg.RoadID] = seg
	}
	assert.Equal(t, "hsl(120, 100%, 50%)", byRoad["0"].Color, "30 vehicles is mid-scale")
	assert.InDelta(t, 4.0, byRoad["0"].Width, 1e-9)
	assert.Equal(t, "hsl(0, 100%, 50%)", byRoad["1"].Color, "61 vehicles clamps to the top of the scale")
	assert.Equal(t, domain.FallbackColor, byRoad["2"].Color)
	assert.InDelta(t, 2.0, byRoad["2"].Width, 1e-9)
}

func readTrafficSnapshots(t *testing.T) []domain.Snapshot {
	t.Helper()

	path := filepath.Join("..", "..", "data", "mock", "traffic_snapshots_450s.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snapshots []domain.Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshots))
	return snapshots
}
