package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/observability"
	"github.com/couchcryptid/road-intensity-service/internal/render"
)

// BatchExtractor reads up to batchSize raw snapshot messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer styles one raw snapshot message.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.StyledSnapshot, error)
}

// BatchLoader writes styled snapshots to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, snapshots []domain.StyledSnapshot) error
}

// Visualizer receives every loaded snapshot for on-screen display.
type Visualizer interface {
	Publish(ctx context.Context, snapshot domain.StyledSnapshot) *render.Ack
}

// Pipeline consumes snapshots, styles them with the mapper registry, writes
// them to the sink and hands them to the visualizer. A message is committed
// once its styled snapshot is loaded, or immediately when it cannot be
// styled at all.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	visualizer  Visualizer
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int

	ready atomic.Bool
	// lastRender is the ack of the most recent redraw requested by the
	// visualizer. Only the Run goroutine touches it.
	lastRender *render.Ack
}

// New creates a Pipeline. visualizer may be nil when nothing is rendered.
func New(e BatchExtractor, t Transformer, l BatchLoader, v Visualizer, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		visualizer:  v,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness reports ready once a styled snapshot has reached the sink.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not styled any snapshots yet")
	}
	return nil
}

// Run styles snapshots until ctx is cancelled. Source and sink failures are
// retried with backoff; they never end the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	r := newRetry()
	for ctx.Err() == nil {
		if err := p.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("snapshot cycle failed", "error", err, "retry_in", r.delay)
			if !r.wait(ctx) {
				break
			}
			continue
		}
		r.reset()
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// cycle runs one extract, style, load and present pass. The returned error
// is a source or sink failure worth backing off for.
func (p *Pipeline) cycle(ctx context.Context) error {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return nil
	}
	p.metrics.SnapshotsConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))

	batch := p.style(ctx, raws)
	if len(batch.snapshots) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, batch.snapshots); err != nil {
		p.logger.Warn("load batch failed, messages left uncommitted", "batch_size", len(batch.snapshots))
		return err
	}
	p.metrics.SnapshotsProduced.Add(float64(len(batch.snapshots)))

	p.present(ctx, batch.snapshots)
	for _, raw := range batch.sources {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return nil
}

// styledBatch pairs styled snapshots with the messages they came from.
type styledBatch struct {
	snapshots []domain.StyledSnapshot
	sources   []domain.RawEvent
}

// style transforms every message. Messages that cannot be styled are poison:
// redelivery would fail the same way, so they are committed and dropped.
func (p *Pipeline) style(ctx context.Context, raws []domain.RawEvent) styledBatch {
	batch := styledBatch{
		snapshots: make([]domain.StyledSnapshot, 0, len(raws)),
		sources:   make([]domain.RawEvent, 0, len(raws)),
	}
	for _, raw := range raws {
		snap, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.metrics.TransformErrors.Inc()
			p.logger.Warn("snapshot rejected, skipping message", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			p.commit(ctx, raw)
			continue
		}
		batch.snapshots = append(batch.snapshots, snap)
		batch.sources = append(batch.sources, raw)
	}
	return batch
}

// present hands loaded snapshots to the visualizer without waiting on the
// frame acks. A previous redraw still in flight is only logged; the store
// already holds the newer data and draws it on its next update.
func (p *Pipeline) present(ctx context.Context, snapshots []domain.StyledSnapshot) {
	if p.visualizer == nil {
		return
	}
	if p.lastRender != nil {
		select {
		case <-p.lastRender.Done():
		default:
			p.logger.Debug("previous redraw not yet acknowledged")
		}
	}
	for _, snap := range snapshots {
		if ack := p.visualizer.Publish(ctx, snap); ack != nil {
			p.lastRender = ack
		}
	}
}

// commit acknowledges raw to its source. A failed commit only means the
// message is redelivered and restyled, so it is logged.
func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// retry is a doubling delay between failed cycles, capped at maxBackoff.
type retry struct {
	delay time.Duration
}

func newRetry() *retry {
	return &retry{delay: initialBackoff}
}

func (r *retry) reset() { r.delay = initialBackoff }

// wait sleeps for the current delay and doubles it. It returns false if ctx
// ends first.
func (r *retry) wait(ctx context.Context) bool {
	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	r.advance()
	return true
}

func (r *retry) advance() { r.delay = min(r.delay*2, maxBackoff) }
