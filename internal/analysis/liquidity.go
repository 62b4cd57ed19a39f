package analysis

import (
	"math"
	"sort"

	"smc-signal-engine/internal/market"
)

// LiquidityDetector finds liquidity pools: clusters of near-equal swing
// extremes where resting stop orders are presumed to accumulate. Pool
// strength grows with the number of touches and the volume traded around
// the level.
type LiquidityDetector struct {
	structure  *StructureDetector
	tolerance  float64 // relative clustering distance
	minTouches int
}

// NewLiquidityDetector creates a liquidity detector.
func NewLiquidityDetector(structure *StructureDetector, tolerance float64, minTouches int) *LiquidityDetector {
	if tolerance <= 0 {
		tolerance = 0.003
	}
	if minTouches < 2 {
		minTouches = 2
	}
	return &LiquidityDetector{
		structure:  structure,
		tolerance:  tolerance,
		minTouches: minTouches,
	}
}

// Detect returns liquidity pools above (bearish side) and below (bullish
// side) the current price.
func (ld *LiquidityDetector) Detect(candles market.Series) []LiquidityPool {
	if len(candles) == 0 {
		return nil
	}
	lastClose := candles.Last().Close

	pools := ld.clusterSwings(candles, ld.structure.SwingHighs(candles))
	pools = append(pools, ld.clusterSwings(candles, ld.structure.SwingLows(candles))...)

	var out []LiquidityPool
	for _, pool := range pools {
		if pool.Touches < ld.minTouches {
			continue
		}
		if pool.Price > lastClose {
			pool.Side = Bearish // sell-side liquidity resting above
		} else {
			pool.Side = Bullish
		}
		out = append(out, pool)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

func (ld *LiquidityDetector) clusterSwings(candles market.Series, swings []SwingPoint) []LiquidityPool {
	var pools []LiquidityPool
	totalVolume := 0.0
	for _, c := range candles {
		totalVolume += c.Volume
	}
	avgVolume := totalVolume / float64(len(candles))

	for _, swing := range swings {
		volume := candles[swing.CandleIndex].Volume
		merged := false
		for i := range pools {
			if math.Abs(swing.Price-pools[i].Price)/pools[i].Price < ld.tolerance {
				n := float64(pools[i].Touches)
				pools[i].Price = (pools[i].Price*n + swing.Price) / (n + 1)
				pools[i].Volume += volume
				pools[i].Touches++
				merged = true
				break
			}
		}
		if !merged {
			pools = append(pools, LiquidityPool{Price: swing.Price, Volume: volume, Touches: 1})
		}
	}

	for i := range pools {
		touchScore := clamp01(float64(pools[i].Touches) / 4)
		volumeScore := 0.0
		if avgVolume > 0 {
			volumeScore = clamp01(pools[i].Volume / (avgVolume * float64(pools[i].Touches) * 2))
		}
		pools[i].Strength = clamp01(touchScore*0.6 + volumeScore*0.4)
	}
	return pools
}
