package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNoNetwork is returned by layers asked to draw before a network is loaded.
var ErrNoNetwork = errors.New("road network not loaded")

// LogLayer is a headless Layer that records what it would draw in the log.
// It is used when the service runs without a map client attached.
type LogLayer struct {
	logger *slog.Logger

	mu      sync.Mutex
	network string
	loaded  bool
	draws   int
}

// NewLogLayer creates a headless layer.
func NewLogLayer(logger *slog.Logger) *LogLayer {
	return &LogLayer{logger: logger}
}

func (l *LogLayer) LoadNetwork(_ context.Context, n Network) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.network = n.Name
	l.loaded = true
	l.logger.Info("layer network loaded", "name", n.Name)
	return nil
}

func (l *LogLayer) UpdateLayer(_ context.Context, scene Scene) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return ErrNoNetwork
	}
	l.draws++
	for kind, snap := range scene.Layers {
		l.logger.Debug("layer updated",
			"network", l.network,
			"time_point", scene.TimePoint,
			"kind", kind,
			"segments", len(snap.Segments),
			"invalid", snap.Invalid,
		)
	}
	return nil
}

// Draws reports how many updates have been applied.
func (l *LogLayer) Draws() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.draws
}
