package analysis

import (
	"smc-signal-engine/internal/market"
)

// FVGDetector detects Fair Value Gaps in candlestick data.
type FVGDetector struct {
	minGapPercent float64 // minimum gap size as percentage
}

// NewFVGDetector creates a new FVG detector.
func NewFVGDetector(minGapPercent float64) *FVGDetector {
	if minGapPercent <= 0 {
		minGapPercent = 0.1
	}
	return &FVGDetector{minGapPercent: minGapPercent}
}

// Detect identifies all Fair Value Gaps in the window and marks gaps that
// later price action has already filled. A gap needs three consecutive
// candles: the middle candle creates it.
func (fd *FVGDetector) Detect(candles market.Series) []FairValueGap {
	if len(candles) < 3 {
		return nil
	}

	var gaps []FairValueGap
	for i := 0; i < len(candles)-2; i++ {
		c1 := candles[i]
		c2 := candles[i+1]
		c3 := candles[i+2]

		// Bullish FVG: gap between c1 high and c3 low.
		if c1.High < c3.Low {
			gapSize := (c3.Low - c1.High) / c1.High * 100
			if gapSize >= fd.minGapPercent {
				gaps = append(gaps, FairValueGap{
					Type:        BullishFVG,
					Top:         c3.Low,
					Bottom:      c1.High,
					CandleIndex: i,
					CreatedAt:   c2.Timestamp,
				})
			}
		}

		// Bearish FVG: gap between c1 low and c3 high.
		if c1.Low > c3.High {
			gapSize := (c1.Low - c3.High) / c3.High * 100
			if gapSize >= fd.minGapPercent {
				gaps = append(gaps, FairValueGap{
					Type:        BearishFVG,
					Top:         c1.Low,
					Bottom:      c3.High,
					CandleIndex: i,
					CreatedAt:   c2.Timestamp,
				})
			}
		}
	}

	for i := range gaps {
		fd.markFilled(&gaps[i], candles)
	}
	return gaps
}

// markFilled checks whether price returned into the gap after it formed.
func (fd *FVGDetector) markFilled(gap *FairValueGap, candles market.Series) {
	for i := gap.CandleIndex + 3; i < len(candles); i++ {
		candle := candles[i]
		if gap.Type == BullishFVG {
			if candle.Low <= gap.Top && candle.Low >= gap.Bottom {
				gap.Filled = true
				at := candle.Timestamp
				gap.FilledAt = &at
				return
			}
		} else {
			if candle.High >= gap.Bottom && candle.High <= gap.Top {
				gap.Filled = true
				at := candle.Timestamp
				gap.FilledAt = &at
				return
			}
		}
	}
}
