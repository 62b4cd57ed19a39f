package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/sentiment"
)

// Weights of the three scoring sources. When a source is unavailable the
// remaining weights are renormalized so the blend still spans [0, 1].
const (
	mtfWeight       = 0.4
	sentimentWeight = 0.3
	smcWeight       = 0.3

	// decisionMargin is how far the winning directional score must exceed
	// the losing one before a signal is emitted.
	decisionMargin = 0.2
)

// SynthesizerConfig holds synthesis tuning.
type SynthesizerConfig struct {
	MinRiskReward   float64 `json:"min_risk_reward"`
	StopLossPercent float64 `json:"stop_loss_percent"` // fallback stop distance, percent
	UseSMC          bool    `json:"use_smc"`
	ExpiryBars      int     `json:"expiry_bars"` // signal lifetime in primary-timeframe bars
}

// Synthesizer blends multi-timeframe alignment, optional external
// sentiment, and the structural score into a directional decision with
// price levels. Synthesize is pure apart from ID generation.
type Synthesizer struct {
	cfg SynthesizerConfig
	log zerolog.Logger
}

// NewSynthesizer creates a synthesizer, defaulting invalid knobs.
func NewSynthesizer(cfg SynthesizerConfig, log zerolog.Logger) *Synthesizer {
	if cfg.MinRiskReward <= 0 {
		cfg.MinRiskReward = 2.0
	}
	if cfg.StopLossPercent <= 0 {
		cfg.StopLossPercent = 2.0
	}
	if cfg.ExpiryBars <= 0 {
		cfg.ExpiryBars = 24
	}
	return &Synthesizer{cfg: cfg, log: log.With().Str("component", "synthesizer").Logger()}
}

// Synthesize produces a trading signal, or nil when no directional edge
// exists or the risk:reward floor is not met. ext may be nil; scoring then
// renormalizes over the remaining sources.
func (s *Synthesizer) Synthesize(mtf *analysis.MultiTimeframeAnalysis, ext *sentiment.Analysis) (*TradingSignal, error) {
	primary, ok := mtf.Timeframes[mtf.PrimaryTimeframe]
	if !ok {
		return nil, fmt.Errorf("synthesize %s: primary timeframe %s missing from analysis", mtf.Symbol, mtf.PrimaryTimeframe)
	}

	sigType, decided := s.determineType(mtf, ext)
	if !decided {
		return nil, nil
	}

	entry, stop, targets := s.calculateLevels(sigType, primary)
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return nil, nil
	}

	riskReward := math.Abs(targets[0]-entry) / risk
	if riskReward < s.cfg.MinRiskReward {
		s.log.Debug().
			Str("symbol", mtf.Symbol).
			Float64("risk_reward", riskReward).
			Float64("min", s.cfg.MinRiskReward).
			Msg("signal discarded below risk:reward floor")
		return nil, nil
	}

	confidence := s.calculateConfidence(mtf, ext)
	timestamp := primary.AnalyzedAt

	sig := &TradingSignal{
		ID:         uuid.NewString(),
		Symbol:     mtf.Symbol,
		Type:       sigType,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: targets,
		Confidence: confidence,
		RiskReward: riskReward,
		Timeframe:  mtf.PrimaryTimeframe,
		Timestamp:  timestamp,
		ExpiresAt:  timestamp.Add(time.Duration(s.cfg.ExpiryBars) * mtf.PrimaryTimeframe.Duration()),
		Status:     StatusActive,
		Priority:   priorityFor(confidence, riskReward),
		SMCFactors: structuralFactors(primary, sigType),
		Reasoning:  buildReasoning(mtf, ext, primary, sigType),
	}
	return sig, nil
}

// determineType blends the weighted directional scores. It returns false
// when neither side clears the decision margin (hold).
func (s *Synthesizer) determineType(mtf *analysis.MultiTimeframeAnalysis, ext *sentiment.Analysis) (Type, bool) {
	var bullish, bearish, total float64

	switch mtf.Alignment {
	case analysis.AlignBullish:
		bullish += mtfWeight * mtf.Confidence
	case analysis.AlignBearish:
		bearish += mtfWeight * mtf.Confidence
	}
	total += mtfWeight

	if ext != nil {
		extScore := clamp01(ext.Confidence / 100)
		switch ext.Sentiment {
		case sentiment.Bullish:
			bullish += sentimentWeight * extScore
		case sentiment.Bearish:
			bearish += sentimentWeight * extScore
		}
		total += sentimentWeight
	}

	if s.cfg.UseSMC {
		smc := smcScore(mtf)
		if smc > 0 {
			bullish += smcWeight * smc
		} else {
			bearish += smcWeight * -smc
		}
		total += smcWeight
	}

	if total == 0 {
		return "", false
	}
	bullish /= total
	bearish /= total

	switch {
	case bullish > bearish+decisionMargin:
		return Buy, true
	case bearish > bullish+decisionMargin:
		return Sell, true
	default:
		return "", false
	}
}

// smcScore reduces the structural picture across timeframes to [-1, 1]:
// order-block balance, structure-break balance, and signed institutional
// flow.
func smcScore(mtf *analysis.MultiTimeframeAnalysis) float64 {
	var obDelta, bosDelta, flowSum float64
	for _, sa := range mtf.Timeframes {
		obDelta += float64(sa.CountOrderBlocks(analysis.Bullish) - sa.CountOrderBlocks(analysis.Bearish))
		bosDelta += float64(sa.CountStructureBreaks(analysis.Bullish) - sa.CountStructureBreaks(analysis.Bearish))
		flowSum += sa.SignedFlow()
	}
	flowAvg := flowSum / float64(len(mtf.Timeframes))
	return clamp(obDelta*0.1+bosDelta*0.15+flowAvg*0.2, -1, 1)
}

// calculateLevels picks the stop from the nearest opposing structural
// level when one exists, else falls back to a percentage stop, and places
// three take-profit tiers at 2x, 3x, and 5x the risk distance.
func (s *Synthesizer) calculateLevels(sigType Type, primary *analysis.StructuralAnalysis) (entry, stop float64, targets []float64) {
	entry = primary.LastClose

	if sigType == Buy {
		stop = nearestLevelBelow(primary.KeyLevels, entry)
		if stop == 0 {
			stop = entry * (1 - s.cfg.StopLossPercent/100)
		}
		risk := entry - stop
		targets = []float64{entry + 2*risk, entry + 3*risk, entry + 5*risk}
		return entry, stop, targets
	}

	stop = nearestLevelAbove(primary.KeyLevels, entry)
	if stop == 0 {
		stop = entry * (1 + s.cfg.StopLossPercent/100)
	}
	risk := stop - entry
	targets = []float64{entry - 2*risk, entry - 3*risk, entry - 5*risk}
	return entry, stop, targets
}

// nearestLevelBelow returns the highest support level strictly below
// price, or 0 when none exists.
func nearestLevelBelow(levels []analysis.KeyLevel, price float64) float64 {
	best := 0.0
	for _, lv := range levels {
		if lv.Kind != analysis.Support || lv.Price >= price {
			continue
		}
		if lv.Price > best {
			best = lv.Price
		}
	}
	return best
}

// nearestLevelAbove returns the lowest resistance level strictly above
// price, or 0 when none exists.
func nearestLevelAbove(levels []analysis.KeyLevel, price float64) float64 {
	best := 0.0
	for _, lv := range levels {
		if lv.Kind != analysis.Resistance || lv.Price <= price {
			continue
		}
		if best == 0 || lv.Price < best {
			best = lv.Price
		}
	}
	return best
}

// calculateConfidence blends MTF confidence, external confidence, and the
// structural confluence, renormalizing when the external term is absent.
func (s *Synthesizer) calculateConfidence(mtf *analysis.MultiTimeframeAnalysis, ext *sentiment.Analysis) float64 {
	score := mtfWeight * mtf.Confidence
	total := mtfWeight

	if ext != nil {
		score += sentimentWeight * clamp01(ext.Confidence/100)
		total += sentimentWeight
	}

	score += smcWeight * smcConfluence(mtf)
	total += smcWeight

	return clamp01(score / total)
}

// smcConfluence averages the presence/strength of order blocks, liquidity
// pools, unfilled gaps, and institutional flow across timeframes.
func smcConfluence(mtf *analysis.MultiTimeframeAnalysis) float64 {
	if len(mtf.Timeframes) == 0 {
		return 0
	}
	sum := 0.0
	for _, sa := range mtf.Timeframes {
		obScore := 0.0
		for _, ob := range sa.OrderBlocks {
			if ob.Strength > obScore {
				obScore = ob.Strength
			}
		}
		poolScore := 0.0
		for _, pool := range sa.LiquidityPools {
			if pool.Strength > poolScore {
				poolScore = pool.Strength
			}
		}
		fvgScore := 0.0
		if len(sa.UnfilledFVGs()) > 0 {
			fvgScore = 1.0
		}
		sum += (obScore + poolScore + fvgScore + sa.Flow.Strength) / 4
	}
	return clamp01(sum / float64(len(mtf.Timeframes)))
}

// priorityFor maps confidence and capped risk:reward onto a priority tier.
func priorityFor(confidence, riskReward float64) Priority {
	score := confidence*0.6 + math.Min(riskReward, 5)/5*0.4
	switch {
	case score >= 0.9:
		return PriorityCritical
	case score >= 0.8:
		return PriorityHigh
	case score >= 0.6:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// structuralFactors counts the structural confirmations on the primary
// timeframe: same-direction order blocks and structure breaks, unfilled
// gaps, and a non-neutral flow read. Filters key off this count, never
// off the reasoning text.
func structuralFactors(primary *analysis.StructuralAnalysis, sigType Type) int {
	dir := analysis.Bullish
	if sigType == Sell {
		dir = analysis.Bearish
	}
	n := primary.CountOrderBlocks(dir) + primary.CountStructureBreaks(dir) + len(primary.UnfilledFVGs())
	if primary.Flow.Direction == analysis.Accumulation || primary.Flow.Direction == analysis.Distribution {
		n++
	}
	return n
}

// buildReasoning lists up to five human-readable facts behind the
// decision, ordered by source weight. Audit only, never recomputed from.
func buildReasoning(mtf *analysis.MultiTimeframeAnalysis, ext *sentiment.Analysis, primary *analysis.StructuralAnalysis, sigType Type) []string {
	reasons := []string{
		fmt.Sprintf("Multi-timeframe alignment %s (confidence %.0f%%)", mtf.Alignment, mtf.Confidence*100),
	}
	if ext != nil && ext.Sentiment != sentiment.Neutral {
		reasons = append(reasons, fmt.Sprintf("External sentiment %s (%.0f%%)", ext.Sentiment, ext.Confidence))
	}

	dir := analysis.Bullish
	if sigType == Sell {
		dir = analysis.Bearish
	}
	if n := primary.CountOrderBlocks(dir); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d %s order block(s) on %s", n, dir, primary.Timeframe))
	}
	if n := primary.CountStructureBreaks(dir); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d %s break(s) of structure on %s", n, dir, primary.Timeframe))
	}
	if n := len(primary.UnfilledFVGs()); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d unfilled fair value gap(s) on %s", n, primary.Timeframe))
	}
	if primary.Flow.Direction != analysis.FlowNeutral {
		reasons = append(reasons, fmt.Sprintf("Institutional flow: %s (strength %.2f)", primary.Flow.Direction, primary.Flow.Strength))
	}

	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	return reasons
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
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
