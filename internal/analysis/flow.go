package analysis

import (
	"math"

	"smc-signal-engine/internal/market"
)

// FlowEstimator derives an institutional accumulation/distribution
// estimate from volume and close location within each bar.
type FlowEstimator struct {
	period int
}

// NewFlowEstimator creates a flow estimator over the trailing period.
func NewFlowEstimator(period int) *FlowEstimator {
	if period <= 0 {
		period = 20
	}
	return &FlowEstimator{period: period}
}

// Estimate computes a signed money-flow balance over the trailing period.
// Each bar contributes its volume weighted by the close location value
// ((close-low)-(high-close))/(high-low), so closes near the high count as
// accumulation and closes near the low as distribution.
func (fe *FlowEstimator) Estimate(candles market.Series) InstitutionalFlow {
	if len(candles) == 0 {
		return InstitutionalFlow{Direction: FlowNeutral}
	}

	period := fe.period
	if len(candles) < period {
		period = len(candles)
	}
	window := candles[len(candles)-period:]

	signed := 0.0
	total := 0.0
	for _, c := range window {
		total += c.Volume
		r := c.Range()
		if r == 0 {
			continue
		}
		clv := ((c.Close - c.Low) - (c.High - c.Close)) / r
		signed += clv * c.Volume
	}
	if total == 0 {
		return InstitutionalFlow{Direction: FlowNeutral}
	}

	balance := signed / total // -1..1
	strength := clamp01(math.Abs(balance))

	switch {
	case balance > 0.1:
		return InstitutionalFlow{Direction: Accumulation, Strength: strength}
	case balance < -0.1:
		return InstitutionalFlow{Direction: Distribution, Strength: strength}
	default:
		return InstitutionalFlow{Direction: FlowNeutral, Strength: strength}
	}
}
