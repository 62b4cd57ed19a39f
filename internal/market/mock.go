package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// MockProvider serves deterministic synthetic candles for development
// and tests when the exchange is unreachable. The series for a given
// symbol/timeframe is stable across calls.
type MockProvider struct {
	basePrice float64
}

// NewMockProvider creates a synthetic data source.
func NewMockProvider(basePrice float64) *MockProvider {
	if basePrice <= 0 {
		basePrice = 50000
	}
	return &MockProvider{basePrice: basePrice}
}

// Candles generates a trending random walk seeded from symbol and
// timeframe, so repeated calls return identical data.
func (p *MockProvider) Candles(_ context.Context, symbol string, tf Timeframe, limit int) (Series, error) {
	if limit <= 0 {
		limit = 200
	}
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(tf))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	step := tf.Duration()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := p.basePrice * (0.5 + rng.Float64())

	candles := make(Series, 0, limit)
	for i := 0; i < limit; i++ {
		drift := math.Sin(float64(i)/20) * 0.002
		change := drift + (rng.Float64()-0.5)*0.01
		open := price
		close := open * (1 + change)
		high := math.Max(open, close) * (1 + rng.Float64()*0.004)
		low := math.Min(open, close) * (1 - rng.Float64()*0.004)
		volume := 1000 + rng.Float64()*9000
		candles = append(candles, Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		})
		price = close
	}
	return candles, nil
}
