package analysis

import (
	"math"

	"smc-signal-engine/internal/market"
)

// SwingPoint represents a confirmed local extreme.
type SwingPoint struct {
	Price       float64
	CandleIndex int
	IsHigh      bool
}

// StructureDetector finds swing points, clustered key levels, and
// break-of-structure events.
type StructureDetector struct {
	swingLookback  int     // candles on each side of a swing extreme
	levelTolerance float64 // relative distance for clustering levels
}

// NewStructureDetector creates a structure detector, defaulting invalid
// knobs.
func NewStructureDetector(swingLookback int, levelTolerance float64) *StructureDetector {
	if swingLookback <= 0 {
		swingLookback = 5
	}
	if levelTolerance <= 0 {
		levelTolerance = 0.01
	}
	return &StructureDetector{
		swingLookback:  swingLookback,
		levelTolerance: levelTolerance,
	}
}

// SwingHighs identifies swing high points: a candle whose high exceeds
// every high within the lookback window on both sides.
func (sd *StructureDetector) SwingHighs(candles market.Series) []SwingPoint {
	return sd.swings(candles, true)
}

// SwingLows identifies swing low points.
func (sd *StructureDetector) SwingLows(candles market.Series) []SwingPoint {
	return sd.swings(candles, false)
}

func (sd *StructureDetector) swings(candles market.Series, high bool) []SwingPoint {
	var points []SwingPoint
	for i := sd.swingLookback; i < len(candles)-sd.swingLookback; i++ {
		extreme := true
		for j := i - sd.swingLookback; j <= i+sd.swingLookback; j++ {
			if j == i {
				continue
			}
			if high && candles[j].High >= candles[i].High {
				extreme = false
				break
			}
			if !high && candles[j].Low <= candles[i].Low {
				extreme = false
				break
			}
		}
		if extreme {
			price := candles[i].High
			if !high {
				price = candles[i].Low
			}
			points = append(points, SwingPoint{Price: price, CandleIndex: i, IsHigh: high})
		}
	}
	return points
}

// StructureBreaks scans for closes beyond the most recent confirmed swing
// level. A bullish break is a close above the latest swing high formed
// before the breaking candle; bearish is symmetric against swing lows.
func (sd *StructureDetector) StructureBreaks(candles market.Series) []StructureBreak {
	highs := sd.SwingHighs(candles)
	lows := sd.SwingLows(candles)

	var breaks []StructureBreak
	hi, li := 0, 0
	var lastHigh, lastLow *SwingPoint

	for i := range candles {
		// Advance to the latest swing confirmed before candle i. A swing at
		// index k is only known once k+lookback candles exist.
		for hi < len(highs) && highs[hi].CandleIndex+sd.swingLookback < i {
			lastHigh = &highs[hi]
			hi++
		}
		for li < len(lows) && lows[li].CandleIndex+sd.swingLookback < i {
			lastLow = &lows[li]
			li++
		}

		close := candles[i].Close
		if lastHigh != nil && close > lastHigh.Price {
			breaks = append(breaks, StructureBreak{
				Direction:   Bullish,
				Level:       lastHigh.Price,
				BreakClose:  close,
				CandleIndex: i,
				BrokenAt:    candles[i].Timestamp,
				Strength:    breakStrength(close, lastHigh.Price),
			})
			lastHigh = nil // one event per broken level
		}
		if lastLow != nil && close < lastLow.Price {
			breaks = append(breaks, StructureBreak{
				Direction:   Bearish,
				Level:       lastLow.Price,
				BreakClose:  close,
				CandleIndex: i,
				BrokenAt:    candles[i].Timestamp,
				Strength:    breakStrength(close, lastLow.Price),
			})
			lastLow = nil
		}
	}
	return breaks
}

// breakStrength scales displacement beyond the level into 0..1, saturating
// at a 2% breach.
func breakStrength(close, level float64) float64 {
	if level == 0 {
		return 0
	}
	displacement := math.Abs(close-level) / level * 100
	return clamp01(displacement / 2.0)
}

// KeyLevels clusters swing extremes into support and resistance levels.
func (sd *StructureDetector) KeyLevels(candles market.Series) []KeyLevel {
	var levels []KeyLevel
	levels = sd.cluster(levels, sd.SwingLows(candles), Support)
	levels = sd.cluster(levels, sd.SwingHighs(candles), Resistance)
	return levels
}

func (sd *StructureDetector) cluster(levels []KeyLevel, swings []SwingPoint, kind KeyLevelKind) []KeyLevel {
	for _, swing := range swings {
		merged := false
		for i := range levels {
			if levels[i].Kind != kind {
				continue
			}
			if math.Abs(swing.Price-levels[i].Price)/levels[i].Price < sd.levelTolerance {
				// merge into running average, weighted by touches
				n := float64(levels[i].Touches)
				levels[i].Price = (levels[i].Price*n + swing.Price) / (n + 1)
				levels[i].Touches++
				merged = true
				break
			}
		}
		if !merged {
			levels = append(levels, KeyLevel{Price: swing.Price, Kind: kind, Touches: 1})
		}
	}
	return levels
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
