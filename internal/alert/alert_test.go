package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

var testLog = zerolog.Nop()

func alertSignal(symbol string, confidence float64) *signal.TradingSignal {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &signal.TradingSignal{
		ID:         "sig-1",
		Symbol:     symbol,
		Type:       signal.Buy,
		Entry:      100,
		StopLoss:   98,
		TakeProfit: []float64{104, 106, 110},
		Confidence: confidence,
		RiskReward: 2.0,
		Timeframe:  market.TF1h,
		Timestamp:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
		Status:     signal.StatusActive,
		Priority:   signal.PriorityHigh,
	}
}

func TestFormatUsesNearestTier(t *testing.T) {
	payload := Format(alertSignal("BTCUSDT", 0.8))
	if payload.TakeProfit != 104 {
		t.Errorf("Expected nearest tier 104, got %f", payload.TakeProfit)
	}
	if payload.ConfidencePercent != 80 {
		t.Errorf("Expected confidence 80%%, got %f", payload.ConfidencePercent)
	}
}

func TestWebhookDelivery(t *testing.T) {
	var received webhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL)
	sig := alertSignal("BTCUSDT", 0.8)
	if err := notifier.Send(context.Background(), sig, Format(sig)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if received.Signal.ID != "sig-1" || received.Signal.Symbol != "BTCUSDT" {
		t.Errorf("Unexpected webhook body: %+v", received.Signal)
	}
	if len(received.Signal.TakeProfit) != 3 {
		t.Errorf("Expected all tiers on the wire, got %v", received.Signal.TakeProfit)
	}
	if received.Signal.Priority != signal.PriorityHigh {
		t.Errorf("Expected priority high, got %s", received.Signal.Priority)
	}
}

func TestWebhookNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL)
	sig := alertSignal("BTCUSDT", 0.8)
	if err := notifier.Send(context.Background(), sig, Format(sig)); err == nil {
		t.Error("Expected error on 500 response")
	}
}

func TestWebhookDisabledWithoutURL(t *testing.T) {
	if NewWebhookNotifier("").IsEnabled() {
		t.Error("Expected empty URL to disable the webhook channel")
	}
}

// fakeNotifier counts deliveries and optionally fails.
type fakeNotifier struct {
	name string
	fail bool
	sent int
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) IsEnabled() bool { return true }
func (f *fakeNotifier) Send(context.Context, *signal.TradingSignal, *Payload) error {
	f.sent++
	if f.fail {
		return errors.New("channel down")
	}
	return nil
}

func TestDispatchFanOutIsolation(t *testing.T) {
	m := NewManager(Config{Enabled: true}, testLog)
	failing := &fakeNotifier{name: "failing", fail: true}
	healthy := &fakeNotifier{name: "healthy"}
	m.AddNotifier(failing)
	m.AddNotifier(healthy)

	delivered := m.Dispatch(context.Background(), alertSignal("BTCUSDT", 0.8))
	if delivered != 1 {
		t.Errorf("Expected 1 delivery, got %d", delivered)
	}
	if healthy.sent != 1 {
		t.Error("Expected the healthy channel to deliver despite the failing one")
	}
}

func TestDispatchFilters(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		sig  *signal.TradingSignal
		want int
	}{
		{"disabled", Config{Enabled: false}, alertSignal("BTCUSDT", 0.9), 0},
		{"below min confidence", Config{Enabled: true, MinConfidence: 0.8}, alertSignal("BTCUSDT", 0.7), 0},
		{"symbol not allowed", Config{Enabled: true, Symbols: []string{"ETHUSDT"}}, alertSignal("BTCUSDT", 0.9), 0},
		{"symbol allowed", Config{Enabled: true, Symbols: []string{"BTCUSDT"}}, alertSignal("BTCUSDT", 0.9), 1},
		{"empty symbols allows all", Config{Enabled: true}, alertSignal("SOLUSDT", 0.9), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.cfg, testLog)
			m.AddNotifier(&fakeNotifier{name: "n"})
			if got := m.Dispatch(context.Background(), tt.sig); got != tt.want {
				t.Errorf("Expected %d deliveries, got %d", tt.want, got)
			}
		})
	}
}
