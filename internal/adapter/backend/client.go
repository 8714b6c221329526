// Package backend is a client for the analysis backend that produces the
// traffic and vulnerability data sets styled by this service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/road-intensity-service/internal/observability"
)

// ErrTaskFailed is returned when the backend accepted a request but reported
// that the computation did not succeed.
var ErrTaskFailed = errors.New("backend task failed")

// DefaultTimeInterval is the simulation bucket, in seconds, the backend
// aggregates traffic into.
const DefaultTimeInterval = 450

// Status is the backend's self-reported state.
type Status struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// VulnerabilityRequest asks the backend to compute a road vulnerability
// index for a task. Empty optional fields take the backend's defaults.
type VulnerabilityRequest struct {
	TaskID         string `json:"task_id"`
	InputFile      string `json:"input_file,omitempty"`
	TimeInterval   int    `json:"time_interval,omitempty"`
	OutputFilename string `json:"output_filename,omitempty"`
}

// SpaceSyntaxRequest asks the backend to run topology analysis for a task at
// the given radius.
type SpaceSyntaxRequest struct {
	TaskID   string `json:"task_id"`
	InputDir string `json:"input_dir,omitempty"`
	Radii    string `json:"radii,omitempty"`
}

type taskRequest struct {
	TaskID string `json:"task_id"`
}

type taskResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client calls the analysis backend's JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Status reports whether the backend is up and which version it runs.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/api/status", "status", nil, &s); err != nil {
		return Status{}, err
	}
	c.metrics.BackendRequests.WithLabelValues("status", "success").Inc()
	return s, nil
}

// CalculateVulnerability starts the vulnerability computation and waits for
// the backend's verdict.
func (c *Client) CalculateVulnerability(ctx context.Context, req VulnerabilityRequest) error {
	if req.TaskID == "" {
		return errors.New("task id is required")
	}
	return c.runTask(ctx, "/api/calculate-vulnerability", "calculate_vulnerability", req)
}

// CalculateSpaceSyntax runs topology analysis at req.Radii.
func (c *Client) CalculateSpaceSyntax(ctx context.Context, req SpaceSyntaxRequest) error {
	if req.TaskID == "" {
		return errors.New("task id is required")
	}
	return c.runTask(ctx, "/api/calculate-space-syntax", "calculate_space_syntax", req)
}

// ConvertSimulationOutput turns the last simulation iteration into the
// per-interval traffic flow table.
func (c *Client) ConvertSimulationOutput(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errors.New("task id is required")
	}
	return c.runTask(ctx, "/api/convert-matsim-output", "convert_output", taskRequest{TaskID: taskID})
}

func (c *Client) runTask(ctx context.Context, path, endpoint string, body any) error {
	var resp taskResponse
	if err := c.do(ctx, http.MethodPost, path, endpoint, body, &resp); err != nil {
		return err
	}
	if resp.Status != "success" {
		c.metrics.BackendRequests.WithLabelValues(endpoint, "task_error").Inc()
		if resp.Message != "" {
			return fmt.Errorf("%s: %w: %s", endpoint, ErrTaskFailed, resp.Message)
		}
		return fmt.Errorf("%s: %w", endpoint, ErrTaskFailed)
	}
	c.metrics.BackendRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

func (c *Client) do(ctx context.Context, method, path, endpoint string, in, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var tr taskResponse
		if json.Unmarshal(msg, &tr) == nil && tr.Message != "" {
			return fmt.Errorf("backend API error: status %d: %s", resp.StatusCode, tr.Message)
		}
		return fmt.Errorf("backend API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	c.logger.Debug("backend request completed", "endpoint", endpoint, "status", resp.StatusCode, "duration", time.Since(start))
	return nil
}
