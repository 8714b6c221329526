package fixture

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFlowTable(t *testing.T) {
	table, err := ReadFlowTable(strings.NewReader("link_id,0,450\n7,3,12\n8,n/a\n\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "450"}, table.TimePoints)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, FlowRow{Line: 2, LinkID: "7", Values: []string{"3", "12"}}, table.Rows[0])
	assert.Equal(t, []string{"n/a", ""}, table.Rows[1].Values, "short rows are padded")
}

func TestReadFlowTable_Errors(t *testing.T) {
	_, err := ReadFlowTable(strings.NewReader("link_id,0\n"))
	require.Error(t, err)

	_, err = ReadFlowTable(strings.NewReader("link_id\n1\n"))
	require.Error(t, err)
}

func TestFlowTable_Snapshots(t *testing.T) {
	table, err := ReadFlowTable(strings.NewReader("link_id,0,450\n7,3,12\n8,n/a,0\n"))
	require.NoError(t, err)

	snaps := table.Snapshots("demo", domain.KindTraffic)
	require.Len(t, snaps, 2)
	assert.Equal(t, "450", snaps[1].TimePoint)
	assert.Equal(t, []domain.Segment{
		{RoadID: "7", Value: 3.0},
		{RoadID: "8", Value: "n/a"},
	}, snaps[0].Segments)
}

func TestFlowTable_RelabelTimePoints(t *testing.T) {
	table := &FlowTable{TimePoints: []string{"0", "450", "total"}}
	table.RelabelTimePoints(time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"07:00:00", "07:07:30", "total"}, table.TimePoints)
}

func TestLoadFlowTable_MockData(t *testing.T) {
	path := filepath.Join("..", "..", "data", "mock", "traffic_flow_450s.csv")
	table, err := LoadFlowTable(path)
	require.NoError(t, err)

	assert.Len(t, table.TimePoints, 4)
	assert.Len(t, table.Rows, 6)
	assert.Equal(t, "traffic_flow_450s", DatasetName(path))
}
