package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("traffic_flow_450s"),
		Value:     []byte(`{"kind":"traffic"}`),
		Topic:     "intensity-snapshots",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("matsim")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("traffic_flow_450s"), raw.Key)
	assert.JSONEq(t, `{"kind":"traffic"}`, string(raw.Value))
	assert.Equal(t, "intensity-snapshots", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "matsim", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 3, 3, 7, 15, 0, 0, time.UTC)
	v := 30.0
	snap := domain.StyledSnapshot{
		Dataset:   "traffic_flow_450s",
		Kind:      domain.KindTraffic,
		TimePoint: "900",
		Max:       60,
		Segments: []domain.StyledSegment{
			{RoadID: "7", Value: &v, Valid: true, Color: "hsl(120, 100%, 50%)", Width: 4},
		},
		StyledAt: now,
	}

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("traffic_flow_450s"), msg.Key)
	assert.Contains(t, string(msg.Value), `"color":"hsl(120, 100%, 50%)"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("traffic"), msg.Headers[0].Value)
	assert.Equal(t, "styled_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
	assert.Equal(t, "time_point", msg.Headers[2].Key)
	assert.Equal(t, []byte("900"), msg.Headers[2].Value)
}
