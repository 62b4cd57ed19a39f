package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/engine"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

// limitRecorder wraps a provider and records the requested candle limits.
type limitRecorder struct {
	inner  market.CandleProvider
	limits []int
}

func (lr *limitRecorder) Candles(ctx context.Context, symbol string, tf market.Timeframe, limit int) (market.Series, error) {
	lr.limits = append(lr.limits, limit)
	return lr.inner.Candles(ctx, symbol, tf, limit)
}

func newTestServer(provider market.CandleProvider, defaults BacktestDefaults) *Server {
	log := zerolog.Nop()
	registry := signal.NewRegistry(nil, log)
	eng := engine.New(
		engine.Config{
			Symbols:          []string{"BTCUSDT"},
			Timeframes:       []market.Timeframe{market.TF1h},
			PrimaryTimeframe: market.TF1h,
			CandleLimit:      200,
		},
		provider,
		nil,
		nil,
		analysis.NewAnalyzer(analysis.Config{MinCandles: 50}),
		analysis.NewAggregator(0.2),
		signal.NewSynthesizer(signal.SynthesizerConfig{}, log),
		signal.NewValidator(signal.ValidatorConfig{}, log),
		registry,
		nil,
		log,
	)
	return NewServer(Config{}, eng, registry, provider, defaults, log)
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBacktestRejectsUnknownTimeframe(t *testing.T) {
	srv := newTestServer(market.NewMockProvider(0), BacktestDefaults{})
	router := srv.Router()

	w := postJSON(router, "/api/backtest", `{"symbol":"BTCUSDT","timeframe":"banana"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown timeframe, got %d", w.Code)
	}

	w = postJSON(router, "/api/backtest", `{"symbol":"BTCUSDT","timeframe":"1h","window_size":100,"step":50}`)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for a known timeframe, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBacktestUsesConfiguredPeriod(t *testing.T) {
	recorder := &limitRecorder{inner: market.NewMockProvider(0)}
	srv := newTestServer(recorder, BacktestDefaults{
		WalkForward: backtest.WalkForwardConfig{WindowSize: 100, Step: 50, Workers: 1},
		TieBreak:    backtest.StopFirst,
		Period:      500,
	})
	router := srv.Router()

	w := postJSON(router, "/api/backtest", `{"symbol":"BTCUSDT","timeframe":"1h"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(recorder.limits) != 1 || recorder.limits[0] != 500 {
		t.Errorf("Expected one fetch of 500 candles, got %v", recorder.limits)
	}

	// an explicit request period overrides the configured default
	w = postJSON(router, "/api/backtest", `{"symbol":"BTCUSDT","timeframe":"1h","period_candles":200}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := recorder.limits[len(recorder.limits)-1]; got != 200 {
		t.Errorf("Expected request period 200 to win, got %d", got)
	}
}
