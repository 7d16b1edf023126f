// Package perception integrates the external inference boundary: it
// captures the rover's current view, sends it to the segmentation server,
// and turns the returned traversability grid into costmap patches.
package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client talks to the inference HTTP API. The contract beyond
// traversability_grid is informational only.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SimPrediction is the /predict/sim response. traversability_grid rows are
// depth bands (row 0 = top of frame = farthest), columns are angular bands;
// values are costmap costs (0 go, 5 caution, 10 no-go).
type SimPrediction struct {
	TraversabilityGrid  [][]float64        `json:"traversability_grid"`
	TraversabilityStats map[string]float64 `json:"traversability_stats"`
	InferenceTimeMs     float64            `json:"inference_time_ms"`
	DominantClass       string             `json:"dominant_class"`
	Confidence          float64            `json:"confidence"`
}

// Health is the inference server's root health response.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

// PredictSim uploads one captured frame and returns the simulation-oriented
// prediction.
func (c *Client) PredictSim(ctx context.Context, frame []byte) (*SimPrediction, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "frame.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(frame); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/sim", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("predict/sim: status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}

	var pred SimPrediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("predict/sim: decode: %w", err)
	}
	if len(pred.TraversabilityGrid) == 0 {
		return nil, fmt.Errorf("predict/sim: response missing traversability_grid")
	}
	return &pred, nil
}

// HealthCheck probes the inference server root endpoint.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health: status %d", resp.StatusCode)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("health: decode: %w", err)
	}
	return &h, nil
}
