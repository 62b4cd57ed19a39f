package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNoData indicates there is no candle data at all for a request.
	ErrNoData = errors.New("no candle data available")
	// ErrUnorderedCandles indicates timestamps are not strictly ascending.
	ErrUnorderedCandles = errors.New("candles are not in ascending timestamp order")
)

// Candle represents one OHLCV bar.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// Range returns the high-low span of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerWick returns the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// Series is an ordered sequence of candles for one symbol/timeframe.
type Series []Candle

// Validate enforces the ingestion contract: non-empty, strictly ascending
// timestamps, and sane OHLC ranges. Gaps between timestamps are tolerated.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrNoData
	}
	for i, c := range s {
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %.8f below low %.8f", i, c.High, c.Low)
		}
		if c.Open < c.Low || c.Open > c.High || c.Close < c.Low || c.Close > c.High {
			return fmt.Errorf("candle %d: open/close outside high-low range", i)
		}
		if i > 0 && !c.Timestamp.After(s[i-1].Timestamp) {
			return ErrUnorderedCandles
		}
	}
	return nil
}

// Last returns the most recent candle. Callers must ensure the series is
// non-empty.
func (s Series) Last() Candle {
	return s[len(s)-1]
}

// Timeframe represents a chart timeframe.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Valid reports whether tf is one of the supported timeframes. External
// input must be checked with Valid before use; Duration alone cannot
// tell an unknown timeframe apart from 1h.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return true
	}
	return false
}

// Duration returns the bar duration for the timeframe. Unknown timeframes
// default to one hour.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
