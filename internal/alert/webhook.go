package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"smc-signal-engine/internal/signal"
)

// webhookBody is the wire contract for custom webhook delivery.
type webhookBody struct {
	Signal    webhookSignal `json:"signal"`
	Timestamp time.Time     `json:"timestamp"`
}

type webhookSignal struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Type       signal.Type     `json:"type"`
	Entry      float64         `json:"entry"`
	StopLoss   float64         `json:"stopLoss"`
	TakeProfit []float64       `json:"takeProfit"`
	Confidence float64         `json:"confidence"`
	RiskReward float64         `json:"riskReward"`
	Priority   signal.Priority `json:"priority"`
	Timestamp  time.Time       `json:"timestamp"`
}

// WebhookNotifier POSTs accepted signals to a custom webhook URL. A
// non-2xx response is a delivery failure; it is never retried here.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates the webhook channel. An empty URL disables
// it.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		enabled: url != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) IsEnabled() bool { return w.enabled }

// Send delivers the signal as a JSON POST.
func (w *WebhookNotifier) Send(ctx context.Context, sig *signal.TradingSignal, _ *Payload) error {
	body := webhookBody{
		Signal: webhookSignal{
			ID:         sig.ID,
			Symbol:     sig.Symbol,
			Type:       sig.Type,
			Entry:      sig.Entry,
			StopLoss:   sig.StopLoss,
			TakeProfit: sig.TakeProfit,
			Confidence: sig.Confidence,
			RiskReward: sig.RiskReward,
			Priority:   sig.Priority,
			Timestamp:  sig.Timestamp,
		},
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
