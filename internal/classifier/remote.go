package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteClient is a client for a model server hosting the pickled risk model
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// PredictRequest carries an aligned feature matrix
type PredictRequest struct {
	FeatureNames []string    `json:"feature_names"`
	Rows         [][]float64 `json:"rows"`
}

// PredictResponse holds one prediction per submitted row
type PredictResponse struct {
	Predictions      []float64 `json:"predictions"`
	ModelVersion     string    `json:"model_version,omitempty"`
	ProcessingTimeMs float64   `json:"processing_time_ms,omitempty"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message,omitempty"`
}

// NewRemoteClient creates a new model server client
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict scores the matrix; the server must answer with one value per row
func (c *RemoteClient) Predict(ctx context.Context, m Matrix) ([]float64, error) {
	reqBody := PredictRequest{
		FeatureNames: m.Columns,
		Rows:         m.Rows,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Predictions) != len(m.Rows) {
		return nil, fmt.Errorf("%w: model server returned %d predictions for %d rows",
			ErrFeatureMismatch, len(result.Predictions), len(m.Rows))
	}

	return result.Predictions, nil
}

// HealthCheck checks if the model server is up and has a model loaded
func (c *RemoteClient) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// GetModelInfo returns model information
func (c *RemoteClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"source":  "remote",
		"url":     c.baseURL,
		"timeout": c.httpClient.Timeout.String(),
	}
}
