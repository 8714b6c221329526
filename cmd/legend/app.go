package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/couchcryptid/road-intensity-service/internal/adapter/backend"
	"github.com/couchcryptid/road-intensity-service/internal/config"
	"github.com/couchcryptid/road-intensity-service/internal/domain"
	"github.com/couchcryptid/road-intensity-service/internal/observability"
	"github.com/couchcryptid/road-intensity-service/internal/output"
)

var (
	paletteFlag = &cli.StringFlag{
		Name:    "palette",
		Usage:   "TOML palette file overriding scale parameters",
		EnvVars: []string{"PALETTE_FILE"},
	}
	kindFlag = &cli.StringFlag{
		Name:  "kind",
		Usage: "intensity kind (traffic or vulnerability)",
		Value: domain.KindVulnerability,
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "print JSON instead of a table",
	}
	stopsFlag = &cli.IntFlag{
		Name:  "stops",
		Usage: "number of legend bands",
		Value: domain.DefaultLegendStops,
	}
	backendURLFlag = &cli.StringFlag{
		Name:    "backend-url",
		Usage:   "analysis backend base URL",
		Value:   "http://localhost:5000",
		EnvVars: []string{"BACKEND_API_URL"},
	}
	backendTimeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Usage:   "analysis backend request timeout",
		Value:   30 * time.Second,
		EnvVars: []string{"BACKEND_TIMEOUT"},
	}
	taskIDFlag = &cli.StringFlag{
		Name:     "task-id",
		Usage:    "backend task identifier",
		Required: true,
	}
)

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "legend",
		Usage:     "inspect road intensity color scales",
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags:     []cli.Flag{paletteFlag},
		Commands: []*cli.Command{
			{
				Name:  "table",
				Usage: "print the precomputed lookup table for a kind",
				Flags: []cli.Flag{
					kindFlag,
					jsonFlag,
					&cli.Float64Flag{Name: "max", Usage: "table maximum (defaults to the scale maximum)"},
					&cli.IntFlag{Name: "steps", Usage: "step count (defaults to max divided by the scale step)"},
				},
				Action: tableAction,
			},
			{
				Name:      "style",
				Usage:     "resolve color and width for each value",
				ArgsUsage: "VALUE...",
				Flags:     []cli.Flag{kindFlag, jsonFlag},
				Action:    styleAction,
			},
			{
				Name:  "legend",
				Usage: "print legend bands for a kind",
				Flags: []cli.Flag{
					kindFlag,
					stopsFlag,
					jsonFlag,
					&cli.BoolFlag{Name: "risk", Usage: "print the five risk levels instead of ramp bands"},
				},
				Action: legendAction,
			},
			{
				Name:      "risk",
				Usage:     "print the color and label of risk levels",
				ArgsUsage: "[LEVEL...]",
				Action:    riskAction,
			},
			{
				Name:  "chart",
				Usage: "render a legend or a snapshot histogram as HTML",
				Flags: []cli.Flag{
					kindFlag,
					stopsFlag,
					&cli.StringFlag{Name: "snapshot", Usage: "snapshot JSON file to chart instead of the bare legend"},
					&cli.StringFlag{Name: "out", Usage: "output HTML file", Required: true},
				},
				Action: chartAction,
			},
			{
				Name:  "backend",
				Usage: "call the analysis backend",
				Flags: []cli.Flag{backendURLFlag, backendTimeoutFlag},
				Subcommands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "report backend status and version",
						Action: backendStatusAction,
					},
					{
						Name:  "vulnerability",
						Usage: "compute the road vulnerability index for a task",
						Flags: []cli.Flag{
							taskIDFlag,
							&cli.IntFlag{Name: "interval", Usage: "time interval in seconds", Value: backend.DefaultTimeInterval},
							&cli.StringFlag{Name: "input", Usage: "merged input CSV (backend default when empty)"},
							&cli.StringFlag{Name: "output", Usage: "output file name (backend default when empty)"},
						},
						Action: backendVulnerabilityAction,
					},
					{
						Name:  "space-syntax",
						Usage: "run topology analysis for a task",
						Flags: []cli.Flag{
							taskIDFlag,
							&cli.StringFlag{Name: "radius", Usage: "analysis radius in meters", Value: "100"},
						},
						Action: backendSpaceSyntaxAction,
					},
				},
			},
		},
	}
}

// registryFrom builds the registry from the built-in scales and the
// optional --palette file.
func registryFrom(c *cli.Context) (*domain.Registry, error) {
	scales := []domain.Scale{domain.TrafficScale(), domain.VulnerabilityScale()}
	if path := c.String("palette"); path != "" {
		palette, err := config.LoadPalette(path)
		if err != nil {
			return nil, err
		}
		for i := range scales {
			scales[i] = palette.Apply(scales[i])
		}
	}
	return domain.NewRegistry(scales...)
}

func mapperFrom(c *cli.Context) (*domain.Mapper, error) {
	registry, err := registryFrom(c)
	if err != nil {
		return nil, err
	}
	kind := strings.ToLower(strings.TrimSpace(c.String("kind")))
	m, ok := registry.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q (known: %s)", kind, strings.Join(registry.Kinds(), ", "))
	}
	return m, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tableAction(c *cli.Context) error {
	m, err := mapperFrom(c)
	if err != nil {
		return err
	}
	maxIntensity := c.Float64("max")
	if maxIntensity == 0 {
		maxIntensity = m.Scale().Max
	}
	if err := m.BuildTable(maxIntensity, c.Int("steps")); err != nil {
		return err
	}
	table := m.Table()

	if c.Bool("json") {
		return writeJSON(c.App.Writer, map[string]any{
			"kind":    m.Kind(),
			"max":     table.Max(),
			"step":    table.Step(),
			"entries": table.Entries(),
		})
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tFROM\tCOLOR\tHEX")
	for i, color := range table.Entries() {
		hex, _ := domain.ToHex(color)
		fmt.Fprintf(tw, "%d\t%g\t%s\t%s\n", i, float64(i)*table.Step(), color, hex)
	}
	return tw.Flush()
}

type styledValue struct {
	Input     string           `json:"input"`
	Valid     bool             `json:"valid"`
	Color     string           `json:"color"`
	Width     float64          `json:"width"`
	RiskLevel domain.RiskLevel `json:"risk_level,omitempty"`
}

func styleAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one value is required")
	}
	m, err := mapperFrom(c)
	if err != nil {
		return err
	}

	results := make([]styledValue, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		sv := styledValue{Input: arg}
		v, ok := domain.ParseIntensity(arg)
		sv.Valid = ok && v >= 0
		if sv.Valid {
			sv.Color = m.ColorFor(v)
			sv.Width = m.WidthFor(v)
			if m.Kind() == domain.KindVulnerability {
				sv.RiskLevel, _ = m.ClassifyRisk(v)
			}
		} else {
			sv.Color = m.Scale().Fallback
			sv.Width = m.Scale().MinWidth
		}
		results = append(results, sv)
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, results)
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VALUE\tCOLOR\tWIDTH\tRISK")
	for _, r := range results {
		risk := string(r.RiskLevel)
		if risk == "" {
			risk = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", r.Input, r.Color, r.Width, risk)
	}
	return tw.Flush()
}

func legendAction(c *cli.Context) error {
	m, err := mapperFrom(c)
	if err != nil {
		return err
	}
	var entries []domain.LegendEntry
	if c.Bool("risk") {
		entries = m.RiskLegend()
	} else {
		entries = m.Legend(c.Int("stops"))
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, entries)
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tCOLOR\tHEX")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Label, e.Color, e.Hex)
	}
	return tw.Flush()
}

func riskAction(c *cli.Context) error {
	tags := c.Args().Slice()
	if len(tags) == 0 {
		for _, level := range domain.RiskLevels() {
			tags = append(tags, string(level))
		}
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tCOLOR\tLABEL")
	for _, tag := range tags {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tag, domain.ColorForRiskLevel(tag), domain.LabelForRiskLevel(tag))
	}
	return tw.Flush()
}

func chartAction(c *cli.Context) error {
	m, err := mapperFrom(c)
	if err != nil {
		return err
	}
	entries := m.Legend(c.Int("stops"))

	f, err := os.Create(c.String("out"))
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	path := c.String("snapshot")
	if path == "" {
		if err := output.LegendChart(f, m.Kind(), entries); err != nil {
			return err
		}
	} else {
		styled, err := styleSnapshotFile(path, m)
		if err != nil {
			return err
		}
		if err := output.SnapshotChart(f, styled, entries); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.App.Writer, "chart saved to %s\n", c.String("out"))
	return nil
}

func styleSnapshotFile(path string, m *domain.Mapper) (domain.StyledSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.StyledSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := domain.ParseSnapshot(domain.RawEvent{Value: data})
	if err != nil {
		return domain.StyledSnapshot{}, err
	}
	if snap.Kind != m.Kind() {
		return domain.StyledSnapshot{}, fmt.Errorf("snapshot kind %q does not match --kind %q", snap.Kind, m.Kind())
	}
	if snap.Max > 0 && m.Scale().Step > 0 {
		if err := m.BuildTable(snap.Max, 0); err != nil {
			return domain.StyledSnapshot{}, err
		}
	}
	return domain.StyleSnapshot(snap, m), nil
}

func backendClient(c *cli.Context) *backend.Client {
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return backend.NewClient(c.String("backend-url"), c.Duration("timeout"), observability.NewUnregisteredMetrics(), logger)
}

func backendStatusAction(c *cli.Context) error {
	status, err := backendClient(c).Status(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "status: %s\nversion: %s\n", status.Status, status.Version)
	return nil
}

func backendVulnerabilityAction(c *cli.Context) error {
	err := backendClient(c).CalculateVulnerability(c.Context, backend.VulnerabilityRequest{
		TaskID:         c.String("task-id"),
		InputFile:      c.String("input"),
		TimeInterval:   c.Int("interval"),
		OutputFilename: c.String("output"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "vulnerability computed for task %s\n", c.String("task-id"))
	return nil
}

func backendSpaceSyntaxAction(c *cli.Context) error {
	radius := c.String("radius")
	if err := config.ValidateRadius(radius); err != nil {
		return err
	}
	err := backendClient(c).CalculateSpaceSyntax(c.Context, backend.SpaceSyntaxRequest{
		TaskID: c.String("task-id"),
		Radii:  radius,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "topology analysis completed for task %s at radius %s\n", c.String("task-id"), radius)
	return nil
}
