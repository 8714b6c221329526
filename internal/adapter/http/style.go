package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
)

type styleResponse struct {
	Kind      string           `json:"kind"`
	Value     *float64         `json:"value"`
	Valid     bool             `json:"valid"`
	Color     string           `json:"color"`
	Hex       string           `json:"hex"`
	Width     float64          `json:"width"`
	RiskLevel domain.RiskLevel `json:"risk_level,omitempty"`
}

type tableResponse struct {
	Kind    string    `json:"kind"`
	Max     float64   `json:"max"`
	Step    float64   `json:"step"`
	BuiltAt time.Time `json:"built_at"`
	Entries []string  `json:"entries"`
}

type riskResponse struct {
	Level string `json:"level"`
	Known bool   `json:"known"`
	Color string `json:"color"`
	Label string `json:"label"`
}

func (s *Server) handleKinds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"kinds": s.registry.Kinds()})
}

// mapperFor resolves the kind query parameter, writing a 4xx when it is
// missing or unknown.
func (s *Server) mapperFor(w http.ResponseWriter, r *http.Request) (*domain.Mapper, bool) {
	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return nil, false
	}
	m, ok := s.registry.Get(kind)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown kind "+strconv.Quote(kind))
		return nil, false
	}
	return m, true
}

// handleStyle resolves one value. Unparseable or negative values are not
// client errors; they are styled with the fallbacks and reported as invalid.
func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapperFor(w, r)
	if !ok {
		return
	}

	resp := styleResponse{Kind: m.Kind()}
	v, valid := domain.ParseIntensity(r.URL.Query().Get("value"))
	if valid && v < 0 {
		valid = false
	}
	if !valid {
		resp.Color = m.Scale().Fallback
		resp.Hex, _ = domain.ToHex(resp.Color)
		resp.Width = m.Scale().MinWidth
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Value = &v
	resp.Valid = true
	resp.Color = m.ColorFor(v)
	resp.Hex = m.HexFor(v)
	resp.Width = m.WidthFor(v)
	if m.Kind() == domain.KindVulnerability {
		resp.RiskLevel, _ = m.ClassifyRisk(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapperFor(w, r)
	if !ok {
		return
	}
	table := m.Table()
	if table == nil {
		writeError(w, http.StatusNotFound, "no table built for "+m.Kind())
		return
	}
	writeJSON(w, http.StatusOK, tableResponse{
		Kind:    m.Kind(),
		Max:     table.Max(),
		Step:    table.Step(),
		BuiltAt: table.BuiltAt(),
		Entries: table.Entries(),
	})
}

// handleLegend returns the ramp legend, or the risk legend with mode=risk.
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapperFor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("mode") == "risk" {
		writeJSON(w, http.StatusOK, m.RiskLegend())
		return
	}

	stops := domain.DefaultLegendStops
	if raw := q.Get("stops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "stops must be between 1 and 100")
			return
		}
		stops = n
	}
	writeJSON(w, http.StatusOK, m.Legend(stops))
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("level")
	level, known := domain.ParseRiskLevel(tag)
	resp := riskResponse{
		Level: string(level),
		Known: known,
		Color: domain.ColorForRiskLevel(tag),
		Label: domain.LabelForRiskLevel(tag),
	}
	writeJSON(w, http.StatusOK, resp)
}
