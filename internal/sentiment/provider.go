// Package sentiment integrates an optional external qualitative signal
// into the pipeline. Providers are best-effort: failures and timeouts
// degrade signal scoring, they never block it.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Bias is the provider's directional read.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
	Neutral Bias = "neutral"
)

// Analysis is the external qualitative signal.
type Analysis struct {
	Sentiment  Bias     `json:"sentiment"`
	Confidence float64  `json:"confidence"` // 0-100
	Reasons    []string `json:"reasons"`
}

// Provider supplies an external sentiment read for a symbol. Analyze must
// honor ctx cancellation; callers bound it with a timeout.
type Provider interface {
	Analyze(ctx context.Context, symbol string) (*Analysis, error)
}

// FearGreedProvider derives sentiment from the alternative.me Fear & Greed
// index. Index extremes read as contrarian-neutral market state rather
// than a trade direction by themselves, so the mapping is conservative.
type FearGreedProvider struct {
	baseURL string
	client  *http.Client
}

// NewFearGreedProvider creates the provider. An empty baseURL uses the
// public endpoint.
func NewFearGreedProvider(baseURL string, timeout time.Duration) *FearGreedProvider {
	if baseURL == "" {
		baseURL = "https://api.alternative.me/fng/?limit=1"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FearGreedProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// Analyze fetches the current index and maps it onto a Bias.
func (p *FearGreedProvider) Analyze(ctx context.Context, _ string) (*Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fear/greed request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fear/greed fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear/greed status %d", resp.StatusCode)
	}

	var fg fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&fg); err != nil {
		return nil, fmt.Errorf("fear/greed decode: %w", err)
	}
	if len(fg.Data) == 0 {
		return nil, fmt.Errorf("fear/greed: empty response")
	}

	value, err := strconv.Atoi(fg.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("fear/greed value %q: %w", fg.Data[0].Value, err)
	}

	analysis := &Analysis{
		Sentiment: Neutral,
		Reasons:   []string{fmt.Sprintf("Fear & Greed index at %d (%s)", value, fg.Data[0].ValueClassification)},
	}
	switch {
	case value >= 60:
		analysis.Sentiment = Bullish
		analysis.Confidence = float64(value)
	case value <= 40:
		analysis.Sentiment = Bearish
		analysis.Confidence = float64(100 - value)
	default:
		analysis.Confidence = 50
	}
	return analysis, nil
}
