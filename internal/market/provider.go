package market

import "context"

// CandleProvider supplies ordered OHLCV history for a symbol/timeframe.
// Implementations are the market-data ingestion boundary; the analysis
// pipeline only ever sees validated Series.
type CandleProvider interface {
	Candles(ctx context.Context, symbol string, tf Timeframe, limit int) (Series, error)
}
