package analysis

import (
	"time"

	"smc-signal-engine/internal/market"
)

// Direction represents a directional bias.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// OrderBlock is a price zone tied to a presumed large institutional order,
// acting as support (bullish) or resistance (bearish).
type OrderBlock struct {
	Direction   Direction `json:"direction"`
	Top         float64   `json:"top"`
	Bottom      float64   `json:"bottom"`
	Strength    float64   `json:"strength"` // 0.0 to 1.0
	CandleIndex int       `json:"candle_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// LiquidityPool is a volume-concentration zone where resting orders are
// presumed to cluster.
type LiquidityPool struct {
	Price    float64   `json:"price"`
	Volume   float64   `json:"volume"`
	Strength float64   `json:"strength"` // 0.0 to 1.0
	Side     Direction `json:"side"`     // bullish = below price (buy-side), bearish = above
	Touches  int       `json:"touches"`
}

// FVGType represents the type of Fair Value Gap.
type FVGType string

const (
	BullishFVG FVGType = "bullish"
	BearishFVG FVGType = "bearish"
)

// FairValueGap is a price range skipped during a rapid move.
type FairValueGap struct {
	Type        FVGType    `json:"type"`
	Top         float64    `json:"top"`
	Bottom      float64    `json:"bottom"`
	CandleIndex int        `json:"candle_index"`
	CreatedAt   time.Time  `json:"created_at"`
	Filled      bool       `json:"filled"`
	FilledAt    *time.Time `json:"filled_at,omitempty"`
}

// StructureBreak records a confirmed breach of a prior swing level.
type StructureBreak struct {
	Direction   Direction `json:"direction"`
	Level       float64   `json:"level"` // the swing level that broke
	BreakClose  float64   `json:"break_close"`
	CandleIndex int       `json:"candle_index"`
	BrokenAt    time.Time `json:"broken_at"`
	Strength    float64   `json:"strength"` // 0.0 to 1.0, displacement beyond the level
}

// FlowDirection classifies the institutional-flow estimate.
type FlowDirection string

const (
	Accumulation FlowDirection = "accumulation"
	Distribution FlowDirection = "distribution"
	FlowNeutral  FlowDirection = "neutral"
)

// InstitutionalFlow is an accumulation/distribution estimate derived from
// volume and close location.
type InstitutionalFlow struct {
	Direction FlowDirection `json:"direction"`
	Strength  float64       `json:"strength"` // 0.0 to 1.0
}

// KeyLevelKind labels a key level as support or resistance.
type KeyLevelKind string

const (
	Support    KeyLevelKind = "support"
	Resistance KeyLevelKind = "resistance"
)

// KeyLevel is a clustered swing level.
type KeyLevel struct {
	Price   float64      `json:"price"`
	Kind    KeyLevelKind `json:"kind"`
	Touches int          `json:"touches"`
}

// StructuralAnalysis holds every per-timeframe structural feature extracted
// from one candle window.
type StructuralAnalysis struct {
	Symbol          string            `json:"symbol"`
	Timeframe       market.Timeframe  `json:"timeframe"`
	OrderBlocks     []OrderBlock      `json:"order_blocks"`
	LiquidityPools  []LiquidityPool   `json:"liquidity_pools"`
	FairValueGaps   []FairValueGap    `json:"fair_value_gaps"`
	StructureBreaks []StructureBreak  `json:"structure_breaks"`
	Flow            InstitutionalFlow `json:"institutional_flow"`
	KeyLevels       []KeyLevel        `json:"key_levels"`
	LastClose       float64           `json:"last_close"`
	AnalyzedAt      time.Time         `json:"analyzed_at"`
}

// UnfilledFVGs returns the gaps not yet filled by later price action.
func (sa *StructuralAnalysis) UnfilledFVGs() []FairValueGap {
	var out []FairValueGap
	for _, gap := range sa.FairValueGaps {
		if !gap.Filled {
			out = append(out, gap)
		}
	}
	return out
}

// CountOrderBlocks returns the number of order blocks with the given
// direction.
func (sa *StructuralAnalysis) CountOrderBlocks(dir Direction) int {
	count := 0
	for _, ob := range sa.OrderBlocks {
		if ob.Direction == dir {
			count++
		}
	}
	return count
}

// CountStructureBreaks returns the number of structure breaks with the
// given direction.
func (sa *StructuralAnalysis) CountStructureBreaks(dir Direction) int {
	count := 0
	for _, bos := range sa.StructureBreaks {
		if bos.Direction == dir {
			count++
		}
	}
	return count
}

// SignedFlow maps the flow estimate onto [-1, 1]: positive for
// accumulation, negative for distribution.
func (sa *StructuralAnalysis) SignedFlow() float64 {
	switch sa.Flow.Direction {
	case Accumulation:
		return sa.Flow.Strength
	case Distribution:
		return -sa.Flow.Strength
	default:
		return 0
	}
}
