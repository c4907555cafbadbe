package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FeatureCount is the fixed width of the analyzer's feature vector.
const FeatureCount = 6

// Scorer converts a feature vector into a raw anomaly margin. The
// margin is unbounded; NormalizeMargin maps it into [0,1] risk. A nil
// Scorer means the capability is absent.
type Scorer interface {
	Score(ctx context.Context, features []float64) (float64, error)
}

// NormalizeMargin maps an isolation-forest style decision margin into
// a [0,1] risk score, higher meaning more anomalous.
func NormalizeMargin(margin float64) float64 {
	risk := 0.5 - margin
	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}

// HTTPConfig configures the remote scoring client.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// HTTPScorer asks a model-serving endpoint for an anomaly margin.
type HTTPScorer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPScorer creates an HTTP scorer.
func NewHTTPScorer(cfg HTTPConfig) (*HTTPScorer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scorer URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPScorer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type scoreRequest struct {
	Features []float64 `json:"features"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score posts the feature vector and returns the raw margin.
func (s *HTTPScorer) Score(ctx context.Context, features []float64) (float64, error) {
	body, err := json.Marshal(scoreRequest{Features: features})
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("score request failed with status %s", resp.Status)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	return out.Score, nil
}
