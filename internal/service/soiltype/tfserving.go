package soiltype

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteModel calls a TensorFlow Serving compatible REST predict endpoint.
type RemoteModel struct {
	baseURL    string
	name       string
	httpClient *http.Client
}

// NewRemoteModel builds a client for {baseURL}/v1/models/{name}:predict.
func NewRemoteModel(baseURL, name string, timeout time.Duration) *RemoteModel {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteModel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Instances []Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions json.RawMessage `json:"predictions"`
	Error       string          `json:"error"`
}

func (m *RemoteModel) Predict(ctx context.Context, t Tensor) (Output, error) {
	body, err := json.Marshal(predictRequest{Instances: []Tensor{t}})
	if err != nil {
		return Output{}, fmt.Errorf("failed to encode request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/models/%s:predict", m.baseURL, m.name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Output{}, fmt.Errorf("model server error: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Output{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return Output{}, fmt.Errorf("model server error: %s", result.Error)
	}
	return parsePredictions(result.Predictions)
}

func parsePredictions(raw json.RawMessage) (Output, error) {
	if len(raw) == 0 {
		return Output{}, errors.New("response has no predictions")
	}
	var batch [][]float64
	if err := json.Unmarshal(raw, &batch); err == nil {
		return Output{Batch: batch}, nil
	}
	var probs []float64
	if err := json.Unmarshal(raw, &probs); err == nil {
		return Output{Probs: probs}, nil
	}
	return Output{}, errors.New("unexpected predictions shape")
}
