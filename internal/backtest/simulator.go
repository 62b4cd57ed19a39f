// Package backtest replays forward candle paths against signal levels and
// aggregates strategy performance.
package backtest

import (
	"fmt"
	"time"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

// ExitReason says why a simulated position closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitTime       ExitReason = "time_exit"
)

// TieBreakPolicy decides the exit when both the stop and a target are
// touched within one candle's range. The high/low path inside a bar is
// unknowable, so this is policy, not fact; stop-first is the conservative
// default.
type TieBreakPolicy string

const (
	StopFirst   TieBreakPolicy = "stop_first"
	TargetFirst TieBreakPolicy = "target_first"
)

// Result is the outcome of replaying one signal.
type Result struct {
	SignalID      string        `json:"signal_id"`
	Symbol        string        `json:"symbol"`
	EntryPrice    float64       `json:"entry_price"`
	ExitPrice     float64       `json:"exit_price"`
	ExitReason    ExitReason    `json:"exit_reason"`
	ExitTime      time.Time     `json:"exit_time"`
	PnL           float64       `json:"pnl"`
	PnLPercentage float64       `json:"pnl_percentage"`
	HoldingTime   time.Duration `json:"holding_time"`
	MaxDrawdown   float64       `json:"max_drawdown"` // worst unrealized excursion, percent (<= 0)
	MaxProfit     float64       `json:"max_profit"`   // best unrealized excursion, percent (>= 0)
}

// Simulator replays a forward candle sequence against one signal's levels.
// Run is a pure deterministic replay: identical inputs always produce an
// identical Result.
type Simulator struct {
	policy TieBreakPolicy
}

// NewSimulator creates a simulator. An unknown policy defaults to
// stop-first.
func NewSimulator(policy TieBreakPolicy) *Simulator {
	if policy != TargetFirst {
		policy = StopFirst
	}
	return &Simulator{policy: policy}
}

// Run walks the candles strictly in ascending timestamp order. Stop
// breaches are checked per the tie-break policy; take-profit tiers are
// checked in ascending order; expiry exits at the expiring candle's close.
// A sequence exhausted without an exit resolves as a time exit on the last
// candle rather than an error.
func (s *Simulator) Run(sig *signal.TradingSignal, candles market.Series) (*Result, error) {
	if err := candles.Validate(); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", sig.ID, err)
	}

	result := &Result{
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		EntryPrice: sig.Entry,
	}

	for _, candle := range candles {
		if candle.Timestamp.After(sig.ExpiresAt) {
			s.close(result, sig, candle.Close, ExitTime, candle.Timestamp)
			return result, nil
		}

		s.trackExcursion(result, sig, candle)

		if s.policy == StopFirst {
			if s.stopHit(sig, candle) {
				s.close(result, sig, sig.StopLoss, ExitStopLoss, candle.Timestamp)
				return result, nil
			}
			if price, ok := s.targetHit(sig, candle); ok {
				s.close(result, sig, price, ExitTakeProfit, candle.Timestamp)
				return result, nil
			}
		} else {
			if price, ok := s.targetHit(sig, candle); ok {
				s.close(result, sig, price, ExitTakeProfit, candle.Timestamp)
				return result, nil
			}
			if s.stopHit(sig, candle) {
				s.close(result, sig, sig.StopLoss, ExitStopLoss, candle.Timestamp)
				return result, nil
			}
		}
	}

	// Forward data ran out before an exit resolved.
	last := candles.Last()
	s.close(result, sig, last.Close, ExitTime, last.Timestamp)
	return result, nil
}

// trackExcursion updates the best/worst unrealized percentage excursion
// using the candle's intraperiod high/low.
func (s *Simulator) trackExcursion(result *Result, sig *signal.TradingSignal, candle market.Candle) {
	var best, worst float64
	if sig.Type == signal.Buy {
		best = (candle.High - sig.Entry) / sig.Entry * 100
		worst = (candle.Low - sig.Entry) / sig.Entry * 100
	} else {
		best = (sig.Entry - candle.Low) / sig.Entry * 100
		worst = (sig.Entry - candle.High) / sig.Entry * 100
	}
	if best > result.MaxProfit {
		result.MaxProfit = best
	}
	if worst < result.MaxDrawdown {
		result.MaxDrawdown = worst
	}
}

// stopHit reports an intraperiod stop-loss breach.
func (s *Simulator) stopHit(sig *signal.TradingSignal, candle market.Candle) bool {
	if sig.Type == signal.Buy {
		return candle.Low <= sig.StopLoss
	}
	return candle.High >= sig.StopLoss
}

// targetHit returns the first breached take-profit tier, checking tiers in
// ascending distance from entry.
func (s *Simulator) targetHit(sig *signal.TradingSignal, candle market.Candle) (float64, bool) {
	for _, target := range sig.TakeProfit {
		if sig.Type == signal.Buy && candle.High >= target {
			return target, true
		}
		if sig.Type == signal.Sell && candle.Low <= target {
			return target, true
		}
	}
	return 0, false
}

// close finalizes the result at the given exit.
func (s *Simulator) close(result *Result, sig *signal.TradingSignal, exitPrice float64, reason ExitReason, exitTime time.Time) {
	result.ExitPrice = exitPrice
	result.ExitReason = reason
	result.ExitTime = exitTime

	if sig.Type == signal.Buy {
		result.PnL = exitPrice - sig.Entry
	} else {
		result.PnL = sig.Entry - exitPrice
	}
	result.PnLPercentage = result.PnL / sig.Entry * 100
	result.HoldingTime = exitTime.Sub(sig.Timestamp)
}
