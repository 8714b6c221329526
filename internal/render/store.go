package render

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/couchcryptid/road-intensity-service/internal/config"
	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/observability"
)

// maxTimePoints bounds how many time points of styled data the store retains.
const maxTimePoints = 512

// Network is the road network the styled segments refer to.
type Network struct {
	Name    string          `json:"name"`
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
}

// Scene is everything a layer needs to draw one time point: the styled
// snapshot of each kind available at that time point.
type Scene struct {
	TimePoint string                           `json:"time_point"`
	Layers    map[string]domain.StyledSnapshot `json:"layers"`
}

// Layer is the rendering handle driven by the store.
type Layer interface {
	LoadNetwork(ctx context.Context, n Network) error
	UpdateLayer(ctx context.Context, scene Scene) error
}

// View is a read-only summary of the store for clients.
type View struct {
	NetworkLoaded    bool     `json:"network_loaded"`
	NetworkName      string   `json:"network_name,omitempty"`
	CurrentTimePoint string   `json:"current_time_point,omitempty"`
	TimePoints       []string `json:"time_points"`
	ShowLegend       bool     `json:"show_legend"`
	Radius           string   `json:"radius"`
}

// Store holds map visualization state: the road network, styled data per
// time point, the selected time point, legend visibility and the topology
// radius. One instance is created at start-up and shared by the pipeline and
// the HTTP API.
type Store struct {
	layer   Layer
	frames  *FrameClock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu               sync.RWMutex
	network          *Network
	data             map[string]map[string]domain.StyledSnapshot // time point -> kind -> snapshot
	order            []string                                    // time points in arrival order
	currentTimePoint string
	showLegend       bool
	radius           string
}

// NewStore creates a store driving layer. radius is the initial topology
// radius.
func NewStore(layer Layer, frames *FrameClock, logger *slog.Logger, metrics *observability.Metrics, radius string) *Store {
	return &Store{
		layer:   layer,
		frames:  frames,
		logger:  logger,
		metrics: metrics,
		data:    make(map[string]map[string]domain.StyledSnapshot),
		radius:  radius,
	}
}

// SetRoadNetwork replaces the road network.
func (s *Store) SetRoadNetwork(n Network) {
	s.mu.Lock()
	s.network = &n
	s.mu.Unlock()
	s.logger.Info("road network set", "name", n.Name, "bytes", len(n.GeoJSON))
}

// SetData records a styled snapshot under its time point and kind,
// replacing any earlier snapshot for the same pair.
func (s *Store) SetData(snap domain.StyledSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind, ok := s.data[snap.TimePoint]
	if !ok {
		byKind = make(map[string]domain.StyledSnapshot)
		s.data[snap.TimePoint] = byKind
		s.order = append(s.order, snap.TimePoint)
		if len(s.order) > maxTimePoints {
			evicted := s.order[0]
			s.order = s.order[1:]
			delete(s.data, evicted)
		}
	}
	byKind[snap.Kind] = snap
	s.logger.Debug("styled data set", "time_point", snap.TimePoint, "kind", snap.Kind, "segments", len(snap.Segments))
}

// SetCurrentTimePoint selects a time point without redrawing.
func (s *Store) SetCurrentTimePoint(timePoint string) {
	s.mu.Lock()
	s.currentTimePoint = timePoint
	s.mu.Unlock()
}

// InitializeNetwork hands the road network to the layer. Failures are
// logged and reported as false.
func (s *Store) InitializeNetwork(ctx context.Context) bool {
	s.mu.RLock()
	network := s.network
	s.mu.RUnlock()

	if network == nil {
		s.logger.Warn("unable to initialize visualization: no road network")
		return false
	}
	if err := s.layer.LoadNetwork(ctx, *network); err != nil {
		s.logger.Error("initialize road network failed", "name", network.Name, "error", err)
		return false
	}
	s.logger.Info("road network initialized", "name", network.Name)
	return true
}

// UpdateVisualization selects timePoint and redraws the layer. The returned
// Ack resolves two frames after the redraw; a failed redraw is logged and
// still acknowledged. When the network, the data or the time point is
// missing nothing is drawn and the Ack is already resolved.
func (s *Store) UpdateVisualization(ctx context.Context, timePoint string) *Ack {
	s.mu.Lock()
	hasNetwork, timePoints := s.network != nil, len(s.data)
	if !hasNetwork || timePoints == 0 || timePoint == "" {
		s.mu.Unlock()
		s.logger.Warn("missing required data for visualization",
			"network", hasNetwork, "time_points", timePoints, "time_point", timePoint)
		return resolvedAck()
	}
	s.currentTimePoint = timePoint
	scene := s.sceneLocked(timePoint)
	s.mu.Unlock()

	start := s.frames.clock.Now()
	if err := s.layer.UpdateLayer(ctx, scene); err != nil {
		s.metrics.RenderUpdateErrors.Inc()
		s.logger.Error("update visualization failed", "time_point", timePoint, "error", err)
	}

	ack := s.frames.AfterFrames(2)
	go func() {
		<-ack.Done()
		s.metrics.RenderAckDuration.Observe(s.frames.clock.Since(start).Seconds())
	}()
	return ack
}

// Publish records snap and redraws if its time point is the one on screen
// or nothing is selected yet.
func (s *Store) Publish(ctx context.Context, snap domain.StyledSnapshot) *Ack {
	s.SetData(snap)

	s.mu.RLock()
	current := s.currentTimePoint
	s.mu.RUnlock()

	if current != "" && current != snap.TimePoint {
		return resolvedAck()
	}
	return s.UpdateVisualization(ctx, snap.TimePoint)
}

// Scene returns the styled data for timePoint.
func (s *Store) Scene(timePoint string) (Scene, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.data[timePoint]; !ok {
		return Scene{}, false
	}
	return s.sceneLocked(timePoint), true
}

// CurrentScene returns the styled data for the selected time point.
func (s *Store) CurrentScene() (Scene, bool) {
	s.mu.RLock()
	current := s.currentTimePoint
	s.mu.RUnlock()
	if current == "" {
		return Scene{}, false
	}
	return s.Scene(current)
}

func (s *Store) sceneLocked(timePoint string) Scene {
	layers := make(map[string]domain.StyledSnapshot, len(s.data[timePoint]))
	for kind, snap := range s.data[timePoint] {
		layers[kind] = snap
	}
	return Scene{TimePoint: timePoint, Layers: layers}
}

// ShowLegend toggles legend visibility.
func (s *Store) ShowLegend(show bool) {
	s.mu.Lock()
	s.showLegend = show
	s.mu.Unlock()
}

// SetRadius changes the topology analysis radius.
func (s *Store) SetRadius(radius string) error {
	if err := config.ValidateRadius(radius); err != nil {
		return err
	}
	s.mu.Lock()
	s.radius = radius
	s.mu.Unlock()
	s.logger.Info("topology radius set", "radius", radius)
	return nil
}

// Radius returns the topology analysis radius.
func (s *Store) Radius() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radius
}

// View summarizes the store.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	timePoints := make([]string, len(s.order))
	copy(timePoints, s.order)
	sort.Strings(timePoints)

	v := View{
		NetworkLoaded:    s.network != nil,
		CurrentTimePoint: s.currentTimePoint,
		TimePoints:       timePoints,
		ShowLegend:       s.showLegend,
		Radius:           s.radius,
	}
	if s.network != nil {
		v.NetworkName = s.network.Name
	}
	return v
}
