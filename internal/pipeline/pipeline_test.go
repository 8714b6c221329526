package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/observability"
	"github.com/couchcryptid/road-intensity-service/internal/pipeline"
	"github.com/couchcryptid/road-intensity-service/internal/render"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	events []domain.RawEvent
	index  atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	i := int(m.index.Load())
	if i >= len(m.events) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	end := min(i+batchSize, len(m.events))
	m.index.Store(int64(end))
	return m.events[i:end], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.StyledSnapshot, error) {
	if m.err != nil {
		return domain.StyledSnapshot{}, m.err
	}
	return domain.StyledSnapshot{Dataset: string(raw.Key), Kind: domain.KindTraffic, TimePoint: "0"}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.StyledSnapshot
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, snapshots []domain.StyledSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, snapshots...)
	return nil
}

type mockVisualizer struct {
	published []domain.StyledSnapshot
}

func (m *mockVisualizer) Publish(_ context.Context, s domain.StyledSnapshot) *render.Ack {
	m.published = append(m.published, s)
	return render.NewFrameClock(nil, 0).AfterFrames(0)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawSnapshot(t, "demo", domain.KindTraffic, "0", 12)

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}
	vis := &mockVisualizer{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, vis, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, "demo", ldr.loaded[0].Dataset)
	assert.Len(t, vis.published, 1)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotsConsumed), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotsProduced), 1e-9)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, nil, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorCommitsAndSkips(t *testing.T) {
	var commits atomic.Int32
	raw := makeRawSnapshot(t, "demo", domain.KindTraffic, "0", 12)
	raw.Commit = func(_ context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, nil, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int32(1), commits.Load(), "poison messages are committed so they are not redelivered")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TransformErrors), 1e-9)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawSnapshot(t, "demo", domain.KindTraffic, "0", 12)
	raw.Topic = "intensity-snapshots"
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, nil, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, committed.Load())
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawSnapshot(t, "demo", domain.KindTraffic, "0", 12)
	raw.Commit = func(_ context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	vis := &mockVisualizer{}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{err: errors.New("broker down")}, vis, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, committed.Load())
	assert.Empty(t, vis.published)
}

func TestPipeline_Run_PublishesEverySnapshotAfterLoad(t *testing.T) {
	events := []domain.RawEvent{
		makeRawSnapshot(t, "a", domain.KindTraffic, "0", 12),
		makeRawSnapshot(t, "b", domain.KindTraffic, "450", 20),
		makeRawSnapshot(t, "c", domain.KindTraffic, "900", 30),
	}
	ext := &mockExtractor{events: events}
	ldr := &mockLoader{}
	vis := &mockVisualizer{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, vis, discardLogger(), newTestMetrics(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, vis.published, 3)
	assert.Equal(t, ldr.loaded, vis.published, "the visualizer sees exactly what was loaded, in order")
}

func TestStyleTransformer_Transform(t *testing.T) {
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(domain.DefaultRegistry(), discardLogger(), metrics)

	raw := makeRawEvent(t, domain.Snapshot{
		Dataset:   "demo",
		Kind:      "Traffic",
		TimePoint: "450",
		Segments: []domain.Segment{
			{RoadID: "a", Value: 30},
			{RoadID: "b", Value: "n/a"},
			{RoadID: "c", Value: 0},
		},
	})

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, domain.KindTraffic, out.Kind)
	require.Len(t, out.Segments, 3)
	assert.Equal(t, "hsl(120, 100%, 50%)", out.Segments[0].Color)
	assert.Equal(t, domain.FallbackColor, out.Segments[1].Color)
	assert.False(t, out.Segments[1].Valid)
	assert.Equal(t, domain.FallbackColor, out.Segments[2].Color)
	assert.True(t, out.Segments[2].Valid, "zero traffic is a real reading rendered gray")
	assert.Equal(t, 1, out.Invalid)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.InvalidIntensities.WithLabelValues(domain.KindTraffic)), 1e-9)
}

func TestStyleTransformer_UnknownKind(t *testing.T) {
	tfm := pipeline.NewTransformer(domain.DefaultRegistry(), discardLogger(), newTestMetrics())

	_, err := tfm.Transform(context.Background(), makeRawSnapshot(t, "demo", "rainfall", "0", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rainfall")

	_, err = tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)
}

func TestStyleTransformer_RebuildsTableOnNewMax(t *testing.T) {
	registry := domain.DefaultRegistry()
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(registry, discardLogger(), metrics)
	m, ok := registry.Get(domain.KindVulnerability)
	require.True(t, ok)

	// First snapshot builds the table over the scale's default domain.
	out, err := tfm.Transform(context.Background(), makeRawSnapshot(t, "demo", domain.KindVulnerability, "0", 5000))
	require.NoError(t, err)
	require.NotNil(t, m.Table())
	assert.InDelta(t, 10000.0, out.Max, 1e-9)
	assert.Equal(t, "hsl(60, 100%, 50%)", out.Segments[0].Color)
	assert.Equal(t, domain.RiskMedium, out.Segments[0].RiskLevel)

	// A snapshot announcing a larger domain replaces it.
	raw := makeRawEvent(t, domain.Snapshot{
		Dataset:   "demo",
		Kind:      domain.KindVulnerability,
		TimePoint: "450",
		Max:       20000,
		Segments:  []domain.Segment{{RoadID: "a", Value: 5000}},
	})
	out, err = tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	assert.InDelta(t, 20000.0, out.Max, 1e-9)
	assert.Equal(t, 2001, m.Table().Len())
	assert.Equal(t, "hsl(90, 100%, 50%)", out.Segments[0].Color)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.TableRebuilds.WithLabelValues(domain.KindVulnerability, "success")), 1e-9)

	// Traffic has no quantization step and never builds a table.
	_, err = tfm.Transform(context.Background(), makeRawSnapshot(t, "demo", domain.KindTraffic, "0", 10))
	require.NoError(t, err)
	traffic, _ := registry.Get(domain.KindTraffic)
	assert.Nil(t, traffic.Table())
}

func TestStyleTransformer_OversizedMaxKeepsPreviousTable(t *testing.T) {
	registry := domain.DefaultRegistry()
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(registry, discardLogger(), metrics)
	m, ok := registry.Get(domain.KindVulnerability)
	require.True(t, ok)

	_, err := tfm.Transform(context.Background(), makeRawSnapshot(t, "demo", domain.KindVulnerability, "0", 5000))
	require.NoError(t, err)

	raw := domain.RawEvent{Value: []byte(`{"dataset":"demo","kind":"vulnerability","time_point":"450","max":1e20,"segments":[{"road_id":"a","value":5000}]}`)}
	var out domain.StyledSnapshot
	require.NotPanics(t, func() { out, err = tfm.Transform(context.Background(), raw) })
	require.NoError(t, err)

	assert.InDelta(t, 10000.0, out.Max, 1e-9)
	assert.Equal(t, 1001, m.Table().Len())
	assert.Equal(t, "hsl(60, 100%, 50%)", out.Segments[0].Color)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TableRebuilds.WithLabelValues(domain.KindVulnerability, "error")), 1e-9)
}

// --- helpers ---

func makeRawSnapshot(t *testing.T, dataset, kind, timePoint string, value float64) domain.RawEvent {
	t.Helper()
	return makeRawEvent(t, domain.Snapshot{
		Dataset:   dataset,
		Kind:      kind,
		TimePoint: timePoint,
		Segments:  []domain.Segment{{RoadID: "r1", Value: value}},
	})
}

func makeRawEvent(t *testing.T, s domain.Snapshot) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(s.Dataset),
		Value: data,
	}
}
