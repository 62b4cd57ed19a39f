package signal

import (
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/analysis"
)

// Fixed weights of the four confirmation checks.
const (
	alignmentWeight  = 0.25
	volumeWeight     = 0.25
	structureWeight  = 0.30
	riskRewardWeight = 0.20

	// validScoreFloor is the minimum weighted score for acceptance.
	validScoreFloor = 0.7
	// riskRewardFloor is the fixed check threshold, independent of the
	// synthesizer's configured minimum.
	riskRewardFloor = 2.0
)

// ValidatorConfig holds validation thresholds.
type ValidatorConfig struct {
	MinConfidence   float64 `json:"min_confidence"`
	MinFlowStrength float64 `json:"min_flow_strength"`
}

// Validator applies the confirmation rules to a synthesized signal.
// Rejection is a normal negative outcome, not an error.
type Validator struct {
	cfg ValidatorConfig
	log zerolog.Logger
}

// NewValidator creates a validator, defaulting invalid knobs.
func NewValidator(cfg ValidatorConfig, log zerolog.Logger) *Validator {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.MinFlowStrength <= 0 {
		cfg.MinFlowStrength = 0.2
	}
	return &Validator{cfg: cfg, log: log.With().Str("component", "validator").Logger()}
}

// Validate scores the four confirmation checks. The signal is accepted iff
// the weighted score reaches 0.7 and its confidence reaches the configured
// minimum.
func (v *Validator) Validate(sig *TradingSignal, mtf *analysis.MultiTimeframeAnalysis) Validation {
	result := Validation{
		AlignmentOK:  mtf.Alignment != analysis.AlignConflicted,
		VolumeOK:     v.flowConfirmed(sig, mtf),
		StructureOK:  structureConfirmed(sig, mtf),
		RiskRewardOK: sig.RiskReward >= riskRewardFloor,
	}

	if result.AlignmentOK {
		result.Score += alignmentWeight
	}
	if result.VolumeOK {
		result.Score += volumeWeight
	}
	if result.StructureOK {
		result.Score += structureWeight
	}
	if result.RiskRewardOK {
		result.Score += riskRewardWeight
	}

	result.OverallValid = result.Score >= validScoreFloor && sig.Confidence >= v.cfg.MinConfidence

	v.log.Debug().
		Str("signal_id", sig.ID).
		Str("symbol", sig.Symbol).
		Float64("score", result.Score).
		Bool("valid", result.OverallValid).
		Msg("signal validated")
	return result
}

// flowConfirmed checks for an institutional-flow/volume confirmation
// agreeing with the signal direction on any timeframe.
func (v *Validator) flowConfirmed(sig *TradingSignal, mtf *analysis.MultiTimeframeAnalysis) bool {
	want := analysis.Accumulation
	if sig.Type == Sell {
		want = analysis.Distribution
	}
	for _, sa := range mtf.Timeframes {
		if sa.Flow.Direction == want && sa.Flow.Strength >= v.cfg.MinFlowStrength {
			return true
		}
	}
	return false
}

// structureConfirmed checks for a same-direction order block or break of
// structure on any timeframe.
func structureConfirmed(sig *TradingSignal, mtf *analysis.MultiTimeframeAnalysis) bool {
	dir := analysis.Bullish
	if sig.Type == Sell {
		dir = analysis.Bearish
	}
	for _, sa := range mtf.Timeframes {
		if sa.CountOrderBlocks(dir) > 0 || sa.CountStructureBreaks(dir) > 0 {
			return true
		}
	}
	return false
}
