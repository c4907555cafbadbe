package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeMargin(t *testing.T) {
	cases := []struct {
		margin float64
		want   float64
	}{
		{margin: 0.5, want: 0},
		{margin: 0, want: 0.5},
		{margin: -0.5, want: 1},
		{margin: -3, want: 1},
		{margin: 2, want: 0},
		{margin: 0.2, want: 0.3},
	}
	for _, c := range cases {
		got := NormalizeMargin(c.margin)
		if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("NormalizeMargin(%f)=%f want %f", c.margin, got, c.want)
		}
	}
}

func TestHTTPScorerPostsFeatures(t *testing.T) {
	var gotFeatures []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Features []float64 `json:"features"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotFeatures = req.Features
		json.NewEncoder(w).Encode(map[string]float64{"score": -0.25})
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(HTTPConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}

	margin, err := s.Score(context.Background(), []float64{5, 2, 0.1, 0, 3, 40})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if margin != -0.25 {
		t.Fatalf("unexpected margin %f", margin)
	}
	if len(gotFeatures) != FeatureCount {
		t.Fatalf("expected %d features, got %d", FeatureCount, len(gotFeatures))
	}
}

func TestHTTPScorerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(HTTPConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	if _, err := s.Score(context.Background(), make([]float64, FeatureCount)); err == nil {
		t.Fatalf("expected error for 503 response")
	}
}
