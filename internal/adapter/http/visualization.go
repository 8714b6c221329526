package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/couchcryptid/road-intensity-service/internal/render"
)

const maxBodyBytes = 32 << 20

type timePointRequest struct {
	TimePoint string `json:"time_point"`
}

type legendRequest struct {
	Show bool `json:"show"`
}

type radiusRequest struct {
	Radius string `json:"radius"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.View())
}

// handleScene returns the styled data for time_point, or for the selected
// time point when the parameter is absent.
func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	var (
		scene render.Scene
		ok    bool
	)
	if tp := r.URL.Query().Get("time_point"); tp != "" {
		scene, ok = s.store.Scene(tp)
	} else {
		scene, ok = s.store.CurrentScene()
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no styled data for time point")
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

func (s *Server) handleSetNetwork(w http.ResponseWriter, r *http.Request) {
	var n render.Network
	if !decodeBody(w, r, &n) {
		return
	}
	if strings.TrimSpace(n.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.store.SetRoadNetwork(n)
	if !s.store.InitializeNetwork(r.Context()) {
		writeError(w, http.StatusBadGateway, "road network could not be loaded into the layer")
		return
	}
	writeJSON(w, http.StatusOK, s.store.View())
}

// handleSetTimePoint redraws the map at the requested time point. With
// ?wait=true the response is delayed until the redraw is acknowledged.
func (s *Server) handleSetTimePoint(w http.ResponseWriter, r *http.Request) {
	var req timePointRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ack := s.store.UpdateVisualization(r.Context(), strings.TrimSpace(req.TimePoint))
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, s.store.View())
		return
	}
	if err := ack.Wait(r.Context()); err != nil {
		writeError(w, http.StatusGatewayTimeout, "visualization update not acknowledged: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.View())
}

func (s *Server) handleShowLegend(w http.ResponseWriter, r *http.Request) {
	var req legendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.store.ShowLegend(req.Show)
	writeJSON(w, http.StatusOK, s.store.View())
}

func (s *Server) handleGetRadius(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, radiusRequest{Radius: s.store.Radius()})
}

func (s *Server) handleSetRadius(w http.ResponseWriter, r *http.Request) {
	var req radiusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.store.SetRadius(req.Radius); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, radiusRequest{Radius: s.store.Radius()})
}
