// Package analysis extracts structural features (order blocks, liquidity
// pools, fair value gaps, structure breaks, institutional flow) from
// candle windows and aggregates them across timeframes.
package analysis

import (
	"errors"
	"fmt"

	"smc-signal-engine/internal/market"
)

// ErrInsufficientData indicates the window is too short for the required
// lookback. Callers treat it as "no signal", not a fault.
var ErrInsufficientData = errors.New("insufficient candle history for analysis")

// Config holds analyzer tuning knobs.
type Config struct {
	MinCandles         int     `json:"min_candles"`
	SwingLookback      int     `json:"swing_lookback"`
	LevelTolerance     float64 `json:"level_tolerance"`
	MinGapPercent      float64 `json:"min_gap_percent"`
	DisplacementFactor float64 `json:"displacement_factor"`
	VolumeFactor       float64 `json:"volume_factor"`
	AveragePeriod      int     `json:"average_period"`
	LiquidityTolerance float64 `json:"liquidity_tolerance"`
	MinPoolTouches     int     `json:"min_pool_touches"`
}

// Analyzer composes the structural detectors into one per-timeframe pass.
// It is stateless: identical input windows always produce identical
// analyses, so instances are safe for concurrent use.
type Analyzer struct {
	minCandles  int
	structure   *StructureDetector
	orderBlocks *OrderBlockDetector
	fvgs        *FVGDetector
	liquidity   *LiquidityDetector
	flow        *FlowEstimator
}

// NewAnalyzer creates an analyzer from config, defaulting invalid knobs.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = 50
	}
	structure := NewStructureDetector(cfg.SwingLookback, cfg.LevelTolerance)
	return &Analyzer{
		minCandles:  cfg.MinCandles,
		structure:   structure,
		orderBlocks: NewOrderBlockDetector(cfg.DisplacementFactor, cfg.VolumeFactor, cfg.AveragePeriod),
		fvgs:        NewFVGDetector(cfg.MinGapPercent),
		liquidity:   NewLiquidityDetector(structure, cfg.LiquidityTolerance, cfg.MinPoolTouches),
		flow:        NewFlowEstimator(cfg.AveragePeriod),
	}
}

// Analyze extracts every structural feature from one candle window.
// Returns market.ErrNoData when the window is empty and
// ErrInsufficientData when it is shorter than the required lookback.
func (a *Analyzer) Analyze(symbol string, tf market.Timeframe, candles market.Series) (*StructuralAnalysis, error) {
	if err := candles.Validate(); err != nil {
		return nil, fmt.Errorf("analyze %s %s: %w", symbol, tf, err)
	}
	if len(candles) < a.minCandles {
		return nil, fmt.Errorf("analyze %s %s: got %d candles, need %d: %w",
			symbol, tf, len(candles), a.minCandles, ErrInsufficientData)
	}

	last := candles.Last()
	return &StructuralAnalysis{
		Symbol:          symbol,
		Timeframe:       tf,
		OrderBlocks:     a.orderBlocks.Detect(candles),
		LiquidityPools:  a.liquidity.Detect(candles),
		FairValueGaps:   a.fvgs.Detect(candles),
		StructureBreaks: a.structure.StructureBreaks(candles),
		Flow:            a.flow.Estimate(candles),
		KeyLevels:       a.structure.KeyLevels(candles),
		LastClose:       last.Close,
		AnalyzedAt:      last.Timestamp,
	}, nil
}
