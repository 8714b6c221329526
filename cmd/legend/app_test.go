package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"legend"}, args...))
	return out.String(), err
}

func TestStyleCommand(t *testing.T) {
	out, err := run(t, "style", "--kind", "traffic", "30", "heavy", "0")
	require.NoError(t, err)

	assert.Contains(t, out, "hsl(120, 100%, 50%)")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, domain.FallbackColor)
}

func TestStyleCommand_JSON(t *testing.T) {
	out, err := run(t, "style", "--kind", "vulnerability", "--json", "2500", "-3")
	require.NoError(t, err)

	var results []styledValue
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.Equal(t, "hsl(90, 100%, 50%)", results[0].Color)
	assert.Equal(t, domain.RiskLow, results[0].RiskLevel)
	assert.False(t, results[1].Valid)
	assert.Equal(t, domain.FallbackColor, results[1].Color)
}

func TestStyleCommand_Errors(t *testing.T) {
	_, err := run(t, "style", "--kind", "traffic")
	require.Error(t, err)

	_, err = run(t, "style", "--kind", "rainfall", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestTableCommand(t *testing.T) {
	out, err := run(t, "table", "--kind", "vulnerability", "--max", "100", "--steps", "4", "--json")
	require.NoError(t, err)

	var body struct {
		Max     float64  `json:"max"`
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.InDelta(t, 100.0, body.Max, 1e-9)
	assert.Equal(t, []string{
		"hsl(120, 100%, 50%)",
		"hsl(90, 100%, 50%)",
		"hsl(60, 100%, 50%)",
		"hsl(30, 100%, 50%)",
		"hsl(0, 100%, 50%)",
	}, body.Entries)

	_, err = run(t, "table", "--kind", "traffic")
	require.Error(t, err, "traffic has no quantization step")
}

func TestPaletteFlag(t *testing.T) {
	palette := filepath.Join(t.TempDir(), "palette.toml")
	require.NoError(t, os.WriteFile(palette, []byte("[scales.vulnerability]\nmax = 12000\n"), 0o600))

	out, err := run(t, "--palette", palette, "table", "--kind", "vulnerability", "--json")
	require.NoError(t, err)

	var body struct {
		Max     float64  `json:"max"`
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.InDelta(t, 12000.0, body.Max, 1e-9)
	assert.Len(t, body.Entries, 1201)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[scales.rainfall]\nmax = 1\n"), 0o600))
	_, err = run(t, "--palette", bad, "legend")
	require.Error(t, err)
}

func TestLegendCommand(t *testing.T) {
	out, err := run(t, "legend", "--kind", "vulnerability", "--stops", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "0-2500")
	assert.Contains(t, out, "7500-10000")

	out, err = run(t, "legend", "--risk")
	require.NoError(t, err)
	assert.Contains(t, out, "Lowest risk")
	assert.Contains(t, out, "#E00000")
}

func TestRiskCommand(t *testing.T) {
	out, err := run(t, "risk", "Lowest", "extreme")
	require.NoError(t, err)
	assert.Contains(t, out, "#008100")
	assert.Contains(t, out, "Lowest risk")
	assert.Contains(t, out, domain.FallbackColor)
	assert.Contains(t, out, "Unknown")
}

func TestChartCommand(t *testing.T) {
	dir := t.TempDir()

	legendOut := filepath.Join(dir, "legend.html")
	_, err := run(t, "chart", "--kind", "vulnerability", "--out", legendOut)
	require.NoError(t, err)
	html, err := os.ReadFile(legendOut)
	require.NoError(t, err)
	assert.Contains(t, string(html), "vulnerability legend")

	snapshot := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(
		`{"dataset":"demo","kind":"traffic","time_point":"450","segments":[{"road_id":"1","value":12},{"road_id":"2","value":"?"}]}`,
	), 0o600))
	snapshotOut := filepath.Join(dir, "snapshot.html")
	_, err = run(t, "chart", "--kind", "traffic", "--snapshot", snapshot, "--out", snapshotOut)
	require.NoError(t, err)
	html, err = os.ReadFile(snapshotOut)
	require.NoError(t, err)
	assert.Contains(t, string(html), "demo traffic at 450")

	_, err = run(t, "chart", "--kind", "vulnerability", "--snapshot", snapshot, "--out", snapshotOut)
	require.Error(t, err, "snapshot kind must match")
}

func TestBackendCommands(t *testing.T) {
	var gotRadius string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/status":
			_, _ = w.Write([]byte(`{"status":"running","version":"1.0.0"}`))
		case "/api/calculate-space-syntax":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotRadius = body["radii"]
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case "/api/calculate-vulnerability":
			_, _ = w.Write([]byte(`{"status":"error"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := run(t, "backend", "--backend-url", srv.URL, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 1.0.0")

	out, err = run(t, "backend", "--backend-url", srv.URL, "space-syntax", "--task-id", "7", "--radius", "250")
	require.NoError(t, err)
	assert.Contains(t, out, "radius 250")
	assert.Equal(t, "250", gotRadius)

	_, err = run(t, "backend", "--backend-url", srv.URL, "space-syntax", "--task-id", "7", "--radius", "-1")
	require.Error(t, err)

	_, err = run(t, "backend", "--backend-url", srv.URL, "vulnerability", "--task-id", "7")
	require.Error(t, err)
}
