package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/render"
)

// Server exposes health, readiness and metrics endpoints alongside the
// styling and visualization API.
type Server struct {
	httpServer *http.Server
	registry   *domain.Registry
	store      *render.Store
	logger     *slog.Logger
}

// NewServer creates an HTTP server. The /v1/visualization and /v1/topology
// routes are only registered when store is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, registry *domain.Registry, store *render.Store, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: registry,
		store:    store,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/kinds", s.handleKinds)
	mux.HandleFunc("GET /v1/style", s.handleStyle)
	mux.HandleFunc("GET /v1/table", s.handleTable)
	mux.HandleFunc("GET /v1/legend", s.handleLegend)
	mux.HandleFunc("GET /v1/risk/{level}", s.handleRisk)

	if store != nil {
		mux.HandleFunc("GET /v1/visualization", s.handleView)
		mux.HandleFunc("GET /v1/visualization/scene", s.handleScene)
		mux.HandleFunc("PUT /v1/visualization/network", s.handleSetNetwork)
		mux.HandleFunc("POST /v1/visualization/time-point", s.handleSetTimePoint)
		mux.HandleFunc("PUT /v1/visualization/legend", s.handleShowLegend)
		mux.HandleFunc("GET /v1/topology/radius", s.handleGetRadius)
		mux.HandleFunc("PUT /v1/topology/radius", s.handleSetRadius)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
