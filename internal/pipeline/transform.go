package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/observability"
)

// StyleTransformer implements Transformer by resolving each snapshot's kind in
// a registry and styling its segments with that kind's mapper.
type StyleTransformer struct {
	registry *domain.Registry
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a StyleTransformer over registry.
func NewTransformer(registry *domain.Registry, logger *slog.Logger, metrics *observability.Metrics) *StyleTransformer {
	return &StyleTransformer{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *StyleTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.StyledSnapshot, error) {
	snap, err := domain.ParseSnapshot(raw)
	if err != nil {
		return domain.StyledSnapshot{}, err
	}

	m, ok := t.registry.Get(snap.Kind)
	if !ok {
		return domain.StyledSnapshot{}, fmt.Errorf("unknown intensity kind %q", snap.Kind)
	}
	t.ensureTable(m, snap)

	styled := domain.StyleSnapshot(snap, m)
	if styled.Invalid > 0 {
		t.metrics.InvalidIntensities.WithLabelValues(snap.Kind).Add(float64(styled.Invalid))
		t.logger.Debug("invalid intensities styled with fallback",
			"dataset", snap.Dataset,
			"kind", snap.Kind,
			"time_point", snap.TimePoint,
			"invalid", styled.Invalid,
		)
	}
	return styled, nil
}

// ensureTable builds the kind's lookup table on first use and rebuilds it
// when a snapshot announces a different maximum. Scales without a
// quantization step always use the direct formula. A failed rebuild keeps
// the previous table.
func (t *StyleTransformer) ensureTable(m *domain.Mapper, snap domain.Snapshot) {
	if m.Scale().Step <= 0 {
		return
	}

	target := m.Max()
	if snap.Max > 0 {
		target = snap.Max
	}
	if tbl := m.Table(); tbl != nil && tbl.Max() == target {
		return
	}

	if err := m.BuildTable(target, 0); err != nil {
		t.metrics.TableRebuilds.WithLabelValues(m.Kind(), "error").Inc()
		t.logger.Warn("color table rebuild failed, keeping previous table",
			"kind", m.Kind(), "max", target, "error", err)
		return
	}
	t.metrics.TableRebuilds.WithLabelValues(m.Kind(), "success").Inc()
	t.metrics.TableEntries.WithLabelValues(m.Kind()).Set(float64(m.Table().Len()))
	t.logger.Info("color table built", "kind", m.Kind(), "max", target, "entries", m.Table().Len())
}
