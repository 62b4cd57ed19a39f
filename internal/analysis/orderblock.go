package analysis

import (
	"smc-signal-engine/internal/market"
)

// OrderBlockDetector finds order blocks: the last opposing candle before a
// strong displacement move on elevated volume. The zone spans that
// candle's full range.
type OrderBlockDetector struct {
	displacementFactor float64 // displacement body vs average body
	volumeFactor       float64 // candle volume vs average volume
	avgPeriod          int     // period for body/volume averages
}

// NewOrderBlockDetector creates an order block detector, defaulting
// invalid knobs.
func NewOrderBlockDetector(displacementFactor, volumeFactor float64, avgPeriod int) *OrderBlockDetector {
	if displacementFactor <= 0 {
		displacementFactor = 1.5
	}
	if volumeFactor <= 0 {
		volumeFactor = 1.2
	}
	if avgPeriod <= 0 {
		avgPeriod = 20
	}
	return &OrderBlockDetector{
		displacementFactor: displacementFactor,
		volumeFactor:       volumeFactor,
		avgPeriod:          avgPeriod,
	}
}

// Detect scans the window for order blocks. A bullish order block is a
// bearish candle immediately followed by a bullish displacement candle
// that closes above the block's high; bearish is the mirror image.
func (od *OrderBlockDetector) Detect(candles market.Series) []OrderBlock {
	if len(candles) < od.avgPeriod+2 {
		return nil
	}

	avgBody := od.averageBody(candles)
	avgVolume := od.averageVolume(candles)
	if avgBody == 0 || avgVolume == 0 {
		return nil
	}

	var blocks []OrderBlock
	for i := 0; i < len(candles)-1; i++ {
		block := candles[i]
		displacement := candles[i+1]

		if displacement.Body() < avgBody*od.displacementFactor {
			continue
		}
		volumeRatio := displacement.Volume / avgVolume
		if volumeRatio < od.volumeFactor {
			continue
		}

		// Bullish: bearish block candle swept by a bullish displacement
		// closing beyond the block high.
		if block.IsBearish() && displacement.IsBullish() && displacement.Close > block.High {
			blocks = append(blocks, OrderBlock{
				Direction:   Bullish,
				Top:         block.High,
				Bottom:      block.Low,
				Strength:    od.strength(displacement, avgBody, volumeRatio),
				CandleIndex: i,
				CreatedAt:   block.Timestamp,
			})
		}

		// Bearish: bullish block candle swept by a bearish displacement
		// closing beyond the block low.
		if block.IsBullish() && displacement.IsBearish() && displacement.Close < block.Low {
			blocks = append(blocks, OrderBlock{
				Direction:   Bearish,
				Top:         block.High,
				Bottom:      block.Low,
				Strength:    od.strength(displacement, avgBody, volumeRatio),
				CandleIndex: i,
				CreatedAt:   block.Timestamp,
			})
		}
	}
	return blocks
}

// strength blends displacement size and volume ratio into 0..1.
func (od *OrderBlockDetector) strength(displacement market.Candle, avgBody, volumeRatio float64) float64 {
	bodyScore := clamp01(displacement.Body() / (avgBody * 3))
	volumeScore := clamp01(volumeRatio / 3)
	return clamp01(bodyScore*0.6 + volumeScore*0.4)
}

func (od *OrderBlockDetector) averageBody(candles market.Series) float64 {
	period := od.avgPeriod
	if len(candles) < period {
		period = len(candles)
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Body()
	}
	return sum / float64(period)
}

func (od *OrderBlockDetector) averageVolume(candles market.Series) float64 {
	period := od.avgPeriod
	if len(candles) < period {
		period = len(candles)
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}
