// Package signal synthesizes, validates, and tracks directional trade
// signals with computed entry, stop-loss, and tiered take-profit levels.
package signal

import (
	"time"

	"smc-signal-engine/internal/market"
)

// Type is the trade direction.
type Type string

const (
	Buy  Type = "buy"
	Sell Type = "sell"
)

// Status tracks the signal lifecycle. Transitions are monotonic: active
// signals move to exactly one terminal status and are never mutated again.
type Status string

const (
	StatusActive    Status = "active"
	StatusExecuted  Status = "executed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusExpired || s == StatusCancelled
}

// Priority ranks signals for alert routing.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// TradingSignal is a directional trade decision with price levels.
// TakeProfit holds three tiers ordered by increasing distance from entry
// (2x, 3x, 5x the risk distance).
type TradingSignal struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Type       Type             `json:"type"`
	Entry      float64          `json:"entry"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit []float64        `json:"take_profit"`
	Confidence float64          `json:"confidence"` // 0.0 to 1.0
	RiskReward float64          `json:"risk_reward"`
	Timeframe  market.Timeframe `json:"timeframe"`
	Timestamp  time.Time        `json:"timestamp"`
	ExpiresAt  time.Time        `json:"expires_at"`
	Status     Status           `json:"status"`
	Priority   Priority         `json:"priority"`
	SMCFactors int              `json:"smc_factors"` // structural confirmations behind the decision
	Reasoning  []string         `json:"reasoning"`   // at most 5 audit facts
}

// Validation is the confirmation-rule outcome for one signal. A failed
// validation is a normal negative result, not an error.
type Validation struct {
	AlignmentOK  bool    `json:"alignment_ok"`
	VolumeOK     bool    `json:"volume_ok"`
	StructureOK  bool    `json:"structure_ok"`
	RiskRewardOK bool    `json:"risk_reward_ok"`
	Score        float64 `json:"score"`
	OverallValid bool    `json:"overall_valid"`
}
