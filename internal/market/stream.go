package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StreamConfig configures the websocket candle feed.
type StreamConfig struct {
	URL           string        `json:"url"`
	MaxCandles    int           `json:"max_candles"`    // Candles retained per symbol/timeframe
	ReadTimeout   time.Duration `json:"read_timeout"`   // Per-message read deadline
	ReconnectWait time.Duration `json:"reconnect_wait"` // Backoff between reconnect attempts
}

// candleEvent is the wire format of one streamed bar.
type candleEvent struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Closed    bool    `json:"closed"`
}

// StreamClient consumes a websocket candle feed and keeps a rolling window
// of closed candles per symbol/timeframe. It implements CandleProvider so
// the analysis pipeline can read from the live feed the same way it reads
// from any other source.
type StreamClient struct {
	cfg StreamConfig
	log zerolog.Logger

	mu      sync.RWMutex
	windows map[string]Series
}

// NewStreamClient creates a stream client. Invalid knobs fall back to
// defaults.
func NewStreamClient(cfg StreamConfig, log zerolog.Logger) *StreamClient {
	if cfg.MaxCandles <= 0 {
		cfg.MaxCandles = 500
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	return &StreamClient{
		cfg:     cfg,
		log:     log.With().Str("component", "market_stream").Logger(),
		windows: make(map[string]Series),
	}
}

// Run connects to the feed and consumes events until ctx is cancelled,
// reconnecting on failure.
func (sc *StreamClient) Run(ctx context.Context) error {
	for {
		if err := sc.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sc.log.Warn().Err(err).Msg("stream disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sc.cfg.ReconnectWait):
		}
	}
}

func (sc *StreamClient) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, sc.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sc.cfg.URL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	sc.log.Info().Str("url", sc.cfg.URL).Msg("candle stream connected")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(sc.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var ev candleEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			sc.log.Debug().Err(err).Msg("skipping malformed stream event")
			continue
		}
		if !ev.Closed {
			continue // only completed bars enter the window
		}
		sc.append(ev)
	}
}

func (sc *StreamClient) append(ev candleEvent) {
	candle := Candle{
		Timestamp: time.UnixMilli(ev.Timestamp),
		Open:      ev.Open,
		High:      ev.High,
		Low:       ev.Low,
		Close:     ev.Close,
		Volume:    ev.Volume,
	}

	key := streamKey(ev.Symbol, Timeframe(ev.Timeframe))

	sc.mu.Lock()
	defer sc.mu.Unlock()

	window := sc.windows[key]
	if n := len(window); n > 0 && !candle.Timestamp.After(window[n-1].Timestamp) {
		return // out-of-order or duplicate bar
	}
	window = append(window, candle)
	if len(window) > sc.cfg.MaxCandles {
		window = window[len(window)-sc.cfg.MaxCandles:]
	}
	sc.windows[key] = window
}

// Candles returns up to limit most recent closed candles for the
// symbol/timeframe. It satisfies CandleProvider.
func (sc *StreamClient) Candles(_ context.Context, symbol string, tf Timeframe, limit int) (Series, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	window := sc.windows[streamKey(symbol, tf)]
	if len(window) == 0 {
		return nil, ErrNoData
	}
	if limit > 0 && len(window) > limit {
		window = window[len(window)-limit:]
	}
	out := make(Series, len(window))
	copy(out, window)
	return out, nil
}

func streamKey(symbol string, tf Timeframe) string {
	return symbol + ":" + string(tf)
}
