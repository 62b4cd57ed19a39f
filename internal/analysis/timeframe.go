package analysis

import (
	"smc-signal-engine/internal/market"
)

// Alignment is the combined multi-timeframe verdict.
type Alignment string

const (
	AlignBullish    Alignment = "bullish"
	AlignBearish    Alignment = "bearish"
	AlignConflicted Alignment = "conflicted"
)

// MultiTimeframeAnalysis combines per-timeframe structural analyses into
// one alignment verdict with a confidence measure.
type MultiTimeframeAnalysis struct {
	Symbol           string                                   `json:"symbol"`
	PrimaryTimeframe market.Timeframe                         `json:"primary_timeframe"`
	Timeframes       map[market.Timeframe]*StructuralAnalysis `json:"timeframes"`
	Alignment        Alignment                                `json:"alignment"`
	Confidence       float64                                  `json:"confidence"` // 0.0 to 1.0
}

// Aggregator weighs each timeframe's directional bias into an alignment
// verdict. Longer timeframes carry more weight.
type Aggregator struct {
	margin float64 // score margin required to call a direction
}

// timeframeWeights gives higher timeframes more influence on the verdict.
var timeframeWeights = map[market.Timeframe]float64{
	market.TF1m:  1.0,
	market.TF5m:  1.5,
	market.TF15m: 2.0,
	market.TF1h:  3.0,
	market.TF4h:  4.0,
	market.TF1d:  5.0,
}

// NewAggregator creates an aggregator. An invalid margin defaults to 0.2.
func NewAggregator(margin float64) *Aggregator {
	if margin <= 0 {
		margin = 0.2
	}
	return &Aggregator{margin: margin}
}

// Bias reduces one structural analysis to a directional score in [-1, 1].
// Structure breaks dominate, then institutional flow, then the order-block
// balance.
func Bias(sa *StructuralAnalysis) float64 {
	bosDelta := float64(sa.CountStructureBreaks(Bullish) - sa.CountStructureBreaks(Bearish))
	obDelta := float64(sa.CountOrderBlocks(Bullish) - sa.CountOrderBlocks(Bearish))
	return clamp(bosDelta*0.3+obDelta*0.2+sa.SignedFlow()*0.8, -1, 1)
}

// Aggregate combines the per-timeframe analyses. The verdict is bullish
// when the weighted bullish score exceeds the bearish score by the margin,
// bearish under the symmetric condition, otherwise conflicted. Confidence
// is a normalized agreement measure across timeframes.
func (ag *Aggregator) Aggregate(symbol string, primary market.Timeframe, analyses map[market.Timeframe]*StructuralAnalysis) *MultiTimeframeAnalysis {
	mtf := &MultiTimeframeAnalysis{
		Symbol:           symbol,
		PrimaryTimeframe: primary,
		Timeframes:       analyses,
		Alignment:        AlignConflicted,
	}
	if len(analyses) == 0 {
		return mtf
	}

	totalWeight := 0.0
	bullish := 0.0
	bearish := 0.0
	biases := make(map[market.Timeframe]float64, len(analyses))
	for tf, sa := range analyses {
		weight := timeframeWeights[tf]
		if weight == 0 {
			weight = 1.0
		}
		bias := Bias(sa)
		biases[tf] = bias
		totalWeight += weight
		if bias > 0 {
			bullish += weight * bias
		} else {
			bearish += weight * -bias
		}
	}
	bullish /= totalWeight
	bearish /= totalWeight

	switch {
	case bullish > bearish+ag.margin:
		mtf.Alignment = AlignBullish
	case bearish > bullish+ag.margin:
		mtf.Alignment = AlignBearish
	}

	mtf.Confidence = ag.confidence(mtf.Alignment, biases, bullish, bearish)
	return mtf
}

// confidence blends the dominant score with the weighted fraction of
// timeframes agreeing with the verdict.
func (ag *Aggregator) confidence(alignment Alignment, biases map[market.Timeframe]float64, bullish, bearish float64) float64 {
	dominant := bullish
	sign := 1.0
	switch alignment {
	case AlignBearish:
		dominant = bearish
		sign = -1.0
	case AlignConflicted:
		// disagreement keeps confidence low
		return clamp01(1 - (bullish + bearish))
	}

	agreeWeight := 0.0
	totalWeight := 0.0
	for tf, bias := range biases {
		weight := timeframeWeights[tf]
		if weight == 0 {
			weight = 1.0
		}
		totalWeight += weight
		if bias*sign > 0 {
			agreeWeight += weight
		}
	}
	agreement := agreeWeight / totalWeight
	return clamp01(dominant*0.5 + agreement*0.5)
}
