// Package alert converts accepted signals into channel-agnostic payloads
// and fans them out to delivery channels, best effort.
package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/signal"
)

// Payload is the channel-agnostic alert for one accepted signal.
type Payload struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Type              signal.Type     `json:"type"`
	Entry             float64         `json:"entry"`
	StopLoss          float64         `json:"stop_loss"`
	TakeProfit        float64         `json:"take_profit"` // nearest tier
	RiskReward        float64         `json:"risk_reward"`
	ConfidencePercent float64         `json:"confidence_percent"`
	Priority          signal.Priority `json:"priority"`
	Timestamp         time.Time       `json:"timestamp"`
}

// Format converts a signal into its delivery payload.
func Format(sig *signal.TradingSignal) *Payload {
	return &Payload{
		ID:                sig.ID,
		Symbol:            sig.Symbol,
		Type:              sig.Type,
		Entry:             sig.Entry,
		StopLoss:          sig.StopLoss,
		TakeProfit:        sig.TakeProfit[0],
		RiskReward:        sig.RiskReward,
		ConfidencePercent: sig.Confidence * 100,
		Priority:          sig.Priority,
		Timestamp:         sig.Timestamp,
	}
}

// Notifier delivers one alert payload over one channel.
type Notifier interface {
	Name() string
	IsEnabled() bool
	Send(ctx context.Context, sig *signal.TradingSignal, payload *Payload) error
}

// Config filters which signals alert at all.
type Config struct {
	Enabled       bool     `json:"enabled"`
	MinConfidence float64  `json:"min_confidence"`
	Symbols       []string `json:"symbols"` // empty = all symbols
}

// Manager fans an accepted signal out to every enabled channel. Delivery
// is best effort: a failing channel is logged and must not block the
// others, and failures are never retried.
type Manager struct {
	cfg       Config
	notifiers []Notifier
	log       zerolog.Logger
}

// NewManager creates an alert manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log.With().Str("component", "alerts").Logger()}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Dispatch formats and delivers the signal if it passes the alert filter.
// It returns how many channels accepted delivery.
func (m *Manager) Dispatch(ctx context.Context, sig *signal.TradingSignal) int {
	if !m.cfg.Enabled || !m.wants(sig) {
		return 0
	}
	payload := Format(sig)

	delivered := 0
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(ctx, sig, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("channel", n.Name()).
				Str("signal_id", sig.ID).
				Msg("alert delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}

// wants applies the alert filter.
func (m *Manager) wants(sig *signal.TradingSignal) bool {
	if sig.Confidence < m.cfg.MinConfidence {
		return false
	}
	if len(m.cfg.Symbols) == 0 {
		return true
	}
	for _, symbol := range m.cfg.Symbols {
		if symbol == sig.Symbol {
			return true
		}
	}
	return false
}
