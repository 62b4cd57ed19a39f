package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/alert"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/api"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/engine"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/sentiment"
	sig "smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: cfg.LoggingConfig.Output,
	})
	log.Info().Msg("signal engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := buildProvider(ctx, cfg, log)

	var candleCache *cache.CandleCache
	if cfg.RedisConfig.Enabled {
		candleCache, err = cache.New(ctx, cache.Config{
			Enabled:  true,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without candle cache")
			candleCache = nil
		} else {
			defer candleCache.Close()
		}
	}

	var signalStore sig.Store
	if cfg.DatabaseConfig.Enabled {
		pg, err := store.New(ctx, cfg.DatabaseConfig.DSN, log)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable, signal history stays in memory")
		} else {
			signalStore = pg
			defer pg.Close()
		}
	}

	var sentimentProvider sentiment.Provider
	if cfg.SentimentConfig.Enabled {
		sentimentProvider = sentiment.NewFearGreedProvider(cfg.SentimentConfig.BaseURL, cfg.SentimentConfig.Timeout())
	}

	alerts := alert.NewManager(alert.Config{
		Enabled:       cfg.AlertConfig.Enabled,
		MinConfidence: cfg.AlertConfig.MinConfidence,
		Symbols:       cfg.AlertConfig.Symbols,
	}, log)
	alerts.AddNotifier(alert.NewWebhookNotifier(cfg.AlertConfig.WebhookURL))

	registry := sig.NewRegistry(signalStore, log)

	timeframes := make([]market.Timeframe, 0, len(cfg.EngineConfig.Timeframes))
	for _, tf := range cfg.EngineConfig.Timeframes {
		timeframes = append(timeframes, market.Timeframe(tf))
	}

	eng := engine.New(
		engine.Config{
			Symbols:          cfg.EngineConfig.Symbols,
			Timeframes:       timeframes,
			PrimaryTimeframe: market.Timeframe(cfg.EngineConfig.PrimaryTimeframe),
			CandleLimit:      cfg.EngineConfig.CandleLimit,
			ScanInterval:     cfg.EngineConfig.ScanInterval(),
			SweepInterval:    cfg.EngineConfig.SweepInterval(),
			SentimentTimeout: cfg.SentimentConfig.Timeout(),
			UseSentiment:     cfg.SentimentConfig.Enabled,
		},
		provider,
		candleCache,
		sentimentProvider,
		analysis.NewAnalyzer(analysis.Config{
			MinCandles:         cfg.AnalysisConfig.MinCandles,
			SwingLookback:      cfg.AnalysisConfig.SwingLookback,
			LevelTolerance:     cfg.AnalysisConfig.LevelTolerance,
			MinGapPercent:      cfg.AnalysisConfig.MinGapPercent,
			DisplacementFactor: cfg.AnalysisConfig.DisplacementFactor,
			VolumeFactor:       cfg.AnalysisConfig.VolumeFactor,
			AveragePeriod:      cfg.AnalysisConfig.AveragePeriod,
		}),
		analysis.NewAggregator(cfg.AnalysisConfig.AlignmentMargin),
		sig.NewSynthesizer(sig.SynthesizerConfig{
			MinRiskReward:   cfg.RiskConfig.MinRiskReward,
			StopLossPercent: cfg.RiskConfig.StopLossPercent,
			UseSMC:          cfg.RiskConfig.UseSMC,
			ExpiryBars:      cfg.RiskConfig.ExpiryBars,
		}, log),
		sig.NewValidator(sig.ValidatorConfig{
			MinConfidence:   cfg.RiskConfig.MinConfidence,
			MinFlowStrength: cfg.RiskConfig.MinFlowStrength,
		}, log),
		registry,
		alerts,
		log,
	)

	go eng.Run(ctx)

	if cfg.ServerConfig.Enabled {
		server := api.NewServer(
			api.Config{
				Port:            cfg.ServerConfig.Port,
				Host:            cfg.ServerConfig.Host,
				AllowedOrigins:  cfg.ServerConfig.AllowedOrigins,
				ReadTimeout:     cfg.ServerConfig.ReadTimeout,
				WriteTimeout:    cfg.ServerConfig.WriteTimeout,
				ShutdownTimeout: cfg.ServerConfig.ShutdownTimeout,
			},
			eng,
			registry,
			provider,
			api.BacktestDefaults{
				WalkForward: backtest.WalkForwardConfig{
					WindowSize: cfg.BacktestConfig.WindowSize,
					Step:       cfg.BacktestConfig.Step,
					Workers:    cfg.BacktestConfig.Workers,
				},
				TieBreak: backtest.TieBreakPolicy(cfg.BacktestConfig.TieBreak),
				Period:   cfg.BacktestConfig.PeriodCandles,
			},
			log,
		)
		if err := server.Start(ctx); err != nil {
			log.Error().Err(err).Msg("api server failed")
		}
	} else {
		<-ctx.Done()
	}

	// give in-flight persistence a moment to settle
	time.Sleep(100 * time.Millisecond)
	log.Info().Msg("signal engine stopped")
}

// buildProvider selects the candle source: mock data, a live websocket
// feed, or the REST klines endpoint.
func buildProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) market.CandleProvider {
	if cfg.MarketConfig.MockMode {
		log.Warn().Msg("mock mode enabled, serving synthetic candles")
		return market.NewMockProvider(0)
	}
	if cfg.MarketConfig.UseStream && cfg.MarketConfig.StreamURL != "" {
		stream := market.NewStreamClient(market.StreamConfig{
			URL:        cfg.MarketConfig.StreamURL,
			MaxCandles: cfg.MarketConfig.WindowSize,
		}, log)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("candle stream terminated")
			}
		}()
		return stream
	}
	return market.NewRESTProvider(cfg.MarketConfig.BaseURL)
}
