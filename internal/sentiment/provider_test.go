package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fearGreedServer(t *testing.T, value string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"value":"` + value + `","value_classification":"Greed"}]}`))
	}))
}

func TestFearGreedMapping(t *testing.T) {
	tests := []struct {
		value          string
		wantSentiment  Bias
		wantConfidence float64
	}{
		{"75", Bullish, 75},
		{"60", Bullish, 60},
		{"50", Neutral, 50},
		{"40", Bearish, 60},
		{"20", Bearish, 80},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			srv := fearGreedServer(t, tt.value)
			defer srv.Close()

			provider := NewFearGreedProvider(srv.URL, time.Second)
			analysis, err := provider.Analyze(context.Background(), "BTCUSDT")
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if analysis.Sentiment != tt.wantSentiment {
				t.Errorf("Expected %s, got %s", tt.wantSentiment, analysis.Sentiment)
			}
			if analysis.Confidence != tt.wantConfidence {
				t.Errorf("Expected confidence %f, got %f", tt.wantConfidence, analysis.Confidence)
			}
			if len(analysis.Reasons) == 0 {
				t.Error("Expected a reason string")
			}
		})
	}
}

func TestFearGreedTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"data":[{"value":"50","value_classification":"Neutral"}]}`))
	}))
	defer srv.Close()

	provider := NewFearGreedProvider(srv.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := provider.Analyze(ctx, "BTCUSDT"); err == nil {
		t.Error("Expected error when the context deadline passes")
	}
}

func TestFearGreedEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	provider := NewFearGreedProvider(srv.URL, time.Second)
	if _, err := provider.Analyze(context.Background(), "BTCUSDT"); err == nil {
		t.Error("Expected error for empty data")
	}
}
