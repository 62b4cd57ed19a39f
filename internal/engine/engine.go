// Package engine orchestrates the signal pipeline: fetch candles per
// timeframe, analyze structure, aggregate alignment, blend sentiment,
// synthesize, validate, register, and alert.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/alert"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/sentiment"
	"smc-signal-engine/internal/signal"
)

// ErrDataUnavailable indicates no candle data could be obtained for any
// configured timeframe. Distinct from a window that is merely too short,
// which produces no signal without error.
var ErrDataUnavailable = errors.New("no candle data available")

// Config holds pipeline-level settings.
type Config struct {
	Symbols          []string           `json:"symbols"`
	Timeframes       []market.Timeframe `json:"timeframes"`
	PrimaryTimeframe market.Timeframe   `json:"primary_timeframe"`
	CandleLimit      int                `json:"candle_limit"`
	ScanInterval     time.Duration      `json:"scan_interval"`
	SweepInterval    time.Duration      `json:"sweep_interval"`
	SentimentTimeout time.Duration      `json:"sentiment_timeout"`
	UseSentiment     bool               `json:"use_sentiment"`
}

// Engine wires the pipeline stages together. All stages below the
// registry are stateless, so one engine serves concurrent callers.
type Engine struct {
	cfg         Config
	provider    market.CandleProvider
	cache       *cache.CandleCache // nil disables caching
	sentiment   sentiment.Provider // nil disables the external source
	analyzer    *analysis.Analyzer
	aggregator  *analysis.Aggregator
	synthesizer *signal.Synthesizer
	validator   *signal.Validator
	registry    *signal.Registry
	alerts      *alert.Manager
	log         zerolog.Logger
}

// New creates an engine, defaulting invalid knobs. cache, sentimentProv,
// and alerts may be nil.
func New(
	cfg Config,
	provider market.CandleProvider,
	candleCache *cache.CandleCache,
	sentimentProv sentiment.Provider,
	analyzer *analysis.Analyzer,
	aggregator *analysis.Aggregator,
	synthesizer *signal.Synthesizer,
	validator *signal.Validator,
	registry *signal.Registry,
	alerts *alert.Manager,
	log zerolog.Logger,
) *Engine {
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 200
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.SentimentTimeout <= 0 {
		cfg.SentimentTimeout = 5 * time.Second
	}
	if cfg.PrimaryTimeframe == "" {
		cfg.PrimaryTimeframe = market.TF1h
	}
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = []market.Timeframe{cfg.PrimaryTimeframe}
	}
	return &Engine{
		cfg:         cfg,
		provider:    provider,
		cache:       candleCache,
		sentiment:   sentimentProv,
		analyzer:    analyzer,
		aggregator:  aggregator,
		synthesizer: synthesizer,
		validator:   validator,
		registry:    registry,
		alerts:      alerts,
		log:         log.With().Str("component", "engine").Logger(),
	}
}

// GenerateSignal runs the full pipeline for one symbol. It returns nil
// without error when the market offers no tradeable setup, and
// ErrDataUnavailable when no timeframe yields any candle data.
func (e *Engine) GenerateSignal(ctx context.Context, symbol string) (*signal.TradingSignal, error) {
	analyses, err := e.analyzeTimeframes(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(analyses) == 0 {
		return nil, nil
	}

	mtf := e.aggregator.Aggregate(symbol, e.primaryFor(analyses), analyses)
	ext := e.fetchSentiment(ctx, symbol)

	sig, err := e.synthesizer.Synthesize(mtf, ext)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", symbol, err)
	}
	if sig == nil {
		return nil, nil
	}

	validation := e.validator.Validate(sig, mtf)
	if !validation.OverallValid {
		e.log.Debug().
			Str("symbol", symbol).
			Float64("score", validation.Score).
			Msg("signal rejected by validation")
		return nil, nil
	}

	if err := e.registry.Admit(sig, validation); err != nil {
		return nil, fmt.Errorf("generate %s: %w", symbol, err)
	}
	if e.alerts != nil {
		e.alerts.Dispatch(ctx, sig)
	}
	return sig, nil
}

// GenerateFromWindow runs the pipeline over one in-memory candle window,
// single timeframe and no external sentiment. It satisfies the
// backtest.Generator contract: nil/nil means the window produced no
// tradeable setup.
func (e *Engine) GenerateFromWindow(symbol string, tf market.Timeframe, window market.Series) (*signal.TradingSignal, error) {
	sa, err := e.analyzer.Analyze(symbol, tf, window)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) || errors.Is(err, market.ErrNoData) {
			return nil, nil
		}
		return nil, err
	}

	mtf := e.aggregator.Aggregate(symbol, tf, map[market.Timeframe]*analysis.StructuralAnalysis{tf: sa})
	sig, err := e.synthesizer.Synthesize(mtf, nil)
	if err != nil || sig == nil {
		return nil, err
	}
	if validation := e.validator.Validate(sig, mtf); !validation.OverallValid {
		return nil, nil
	}
	return sig, nil
}

// analyzeTimeframes fetches and analyzes every configured timeframe in
// parallel. Timeframes with too little history are skipped; only a total
// absence of data is an error.
func (e *Engine) analyzeTimeframes(ctx context.Context, symbol string) (map[market.Timeframe]*analysis.StructuralAnalysis, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		analyses = make(map[market.Timeframe]*analysis.StructuralAnalysis)
		fetched  bool
	)

	for _, tf := range e.cfg.Timeframes {
		wg.Add(1)
		go func(tf market.Timeframe) {
			defer wg.Done()

			candles, err := e.fetchCandles(ctx, symbol, tf)
			if err != nil {
				e.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
					Msg("candle fetch failed")
				return
			}
			mu.Lock()
			fetched = true
			mu.Unlock()

			sa, err := e.analyzer.Analyze(symbol, tf, candles)
			if err != nil {
				if !errors.Is(err, analysis.ErrInsufficientData) {
					e.log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(tf)).
						Msg("analysis failed")
				}
				return
			}
			mu.Lock()
			analyses[tf] = sa
			mu.Unlock()
		}(tf)
	}
	wg.Wait()

	if !fetched {
		return nil, fmt.Errorf("generate %s: %w", symbol, ErrDataUnavailable)
	}
	return analyses, nil
}

// fetchCandles consults the cache first and falls through to the
// provider on a miss.
func (e *Engine) fetchCandles(ctx context.Context, symbol string, tf market.Timeframe) (market.Series, error) {
	if e.cache != nil {
		if candles := e.cache.Get(ctx, symbol, tf); len(candles) >= e.cfg.CandleLimit {
			return candles, nil
		}
	}
	candles, err := e.provider.Candles(ctx, symbol, tf, e.cfg.CandleLimit)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(ctx, symbol, tf, candles)
	}
	return candles, nil
}

// fetchSentiment queries the external provider under a bounded timeout.
// Any failure degrades to nil; the synthesizer renormalizes its weights.
func (e *Engine) fetchSentiment(ctx context.Context, symbol string) *sentiment.Analysis {
	if !e.cfg.UseSentiment || e.sentiment == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SentimentTimeout)
	defer cancel()

	ext, err := e.sentiment.Analyze(sctx, symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment unavailable, degrading")
		return nil
	}
	return ext
}

// primaryFor returns the configured primary timeframe when it was
// analyzed, else the highest-weight timeframe present.
func (e *Engine) primaryFor(analyses map[market.Timeframe]*analysis.StructuralAnalysis) market.Timeframe {
	if _, ok := analyses[e.cfg.PrimaryTimeframe]; ok {
		return e.cfg.PrimaryTimeframe
	}
	best := e.cfg.PrimaryTimeframe
	bestDur := time.Duration(0)
	for tf := range analyses {
		if d := tf.Duration(); d > bestDur {
			best, bestDur = tf, d
		}
	}
	return best
}

// Run scans every configured symbol on an interval and sweeps expired
// signals on another, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	scan := time.NewTicker(e.cfg.ScanInterval)
	sweep := time.NewTicker(e.cfg.SweepInterval)
	defer scan.Stop()
	defer sweep.Stop()

	e.log.Info().
		Strs("symbols", e.cfg.Symbols).
		Dur("scan_interval", e.cfg.ScanInterval).
		Msg("engine started")

	e.scanAll(ctx)
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopped")
			return
		case <-scan.C:
			e.scanAll(ctx)
		case <-sweep.C:
			e.registry.ExpireSweep(time.Now())
		}
	}
}

func (e *Engine) scanAll(ctx context.Context) {
	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		sig, err := e.GenerateSignal(ctx, symbol)
		if err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("scan failed")
			continue
		}
		if sig != nil {
			e.log.Info().
				Str("symbol", symbol).
				Str("type", string(sig.Type)).
				Float64("confidence", sig.Confidence).
				Float64("risk_reward", sig.RiskReward).
				Msg("signal generated")
		}
	}
}
