package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

// Generator runs the signal-generation pipeline over one trailing window.
// A nil signal with nil error means the window produced no tradeable
// setup, which is the common case.
type Generator interface {
	GenerateFromWindow(symbol string, tf market.Timeframe, window market.Series) (*signal.TradingSignal, error)
}

// WalkForwardConfig tunes the sweep.
type WalkForwardConfig struct {
	WindowSize int `json:"window_size"` // candles fed to the pipeline per anchor
	Step       int `json:"step"`        // candles between anchors
	Workers    int `json:"workers"`     // concurrent anchors
}

// WalkForward slides a fixed-size analysis window across historical data,
// runs the full generation pipeline at each anchor, and replays any valid
// signal against the data following that anchor. Anchors are independent,
// so they run on a worker pool; each replay itself stays strictly
// sequential.
type WalkForward struct {
	cfg       WalkForwardConfig
	simulator *Simulator
	log       zerolog.Logger
}

// NewWalkForward creates a sweep runner, defaulting invalid knobs.
func NewWalkForward(cfg WalkForwardConfig, simulator *Simulator, log zerolog.Logger) *WalkForward {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 100
	}
	if cfg.Step <= 0 {
		cfg.Step = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &WalkForward{
		cfg:       cfg,
		simulator: simulator,
		log:       log.With().Str("component", "walkforward").Logger(),
	}
}

// Run sweeps the candles and returns the collected results in anchor
// order. Cancelling ctx stops scheduling new anchors; anchors already in
// flight finish.
func (wf *WalkForward) Run(ctx context.Context, symbol string, tf market.Timeframe, candles market.Series, gen Generator) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := candles.Validate(); err != nil {
		return nil, fmt.Errorf("walkforward %s: %w", symbol, err)
	}
	if len(candles) <= wf.cfg.WindowSize {
		return nil, fmt.Errorf("walkforward %s: got %d candles, need more than %d: %w",
			symbol, len(candles), wf.cfg.WindowSize, market.ErrNoData)
	}

	var anchors []int
	for a := wf.cfg.WindowSize; a < len(candles); a += wf.cfg.Step {
		anchors = append(anchors, a)
	}

	slots := make([]*Result, len(anchors))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < wf.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				slots[idx] = wf.runAnchor(symbol, tf, candles, anchors[idx], gen)
			}
		}()
	}

	scheduled := 0
dispatch:
	for idx := range anchors {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- idx:
			scheduled++
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil && scheduled == 0 {
		return nil, err
	}

	var results []Result
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	wf.log.Info().
		Str("symbol", symbol).
		Int("anchors", scheduled).
		Int("trades", len(results)).
		Msg("walk-forward sweep complete")
	return results, nil
}

// runAnchor generates on the trailing window and replays forward. Errors
// at one anchor are logged and skipped rather than aborting the sweep.
func (wf *WalkForward) runAnchor(symbol string, tf market.Timeframe, candles market.Series, anchor int, gen Generator) *Result {
	window := candles[anchor-wf.cfg.WindowSize : anchor]
	sig, err := gen.GenerateFromWindow(symbol, tf, window)
	if err != nil {
		wf.log.Debug().Err(err).Int("anchor", anchor).Msg("generation failed at anchor")
		return nil
	}
	if sig == nil {
		return nil
	}

	result, err := wf.simulator.Run(sig, candles[anchor:])
	if err != nil {
		wf.log.Debug().Err(err).Int("anchor", anchor).Msg("replay failed at anchor")
		return nil
	}
	return result
}
