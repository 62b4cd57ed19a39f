package backtest

import (
	"math"
	"testing"
	"time"
)

func pctResult(i int, pnlPct float64, holding time.Duration) Result {
	return Result{
		SignalID:      "sig",
		Symbol:        "BTCUSDT",
		EntryPrice:    100,
		ExitPrice:     100 + pnlPct,
		ExitTime:      ts(i),
		PnL:           pnlPct,
		PnLPercentage: pnlPct,
		HoldingTime:   holding,
		MaxDrawdown:   math.Min(pnlPct, 0),
	}
}

func TestAggregateEmpty(t *testing.T) {
	perf := Aggregate(nil)
	if perf.TotalTrades != 0 || perf.WinRate != 0 || perf.SharpeRatio != 0 {
		t.Errorf("Expected zeroed performance for no results, got %+v", perf)
	}
}

func TestAggregateStatistics(t *testing.T) {
	results := []Result{
		pctResult(1, 10, 2*time.Hour),
		pctResult(2, -5, 4*time.Hour),
		pctResult(3, 5, 6*time.Hour),
	}

	perf := Aggregate(results)

	if perf.TotalTrades != 3 || perf.WinningTrades != 2 || perf.LosingTrades != 1 {
		t.Errorf("Expected 3 trades, 2 wins, 1 loss, got %+v", perf)
	}
	if math.Abs(perf.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("Expected win rate 2/3, got %f", perf.WinRate)
	}
	if math.Abs(perf.AveragePnL-10.0/3.0) > 1e-9 {
		t.Errorf("Expected average pnl 10/3, got %f", perf.AveragePnL)
	}

	// compounded: 1.10 * 0.95 * 1.05 - 1
	wantReturn := 1.10*0.95*1.05 - 1
	if math.Abs(perf.TotalReturn-wantReturn) > 1e-9 {
		t.Errorf("Expected compounded return %f, got %f", wantReturn, perf.TotalReturn)
	}

	if perf.BestTrade != 10 || perf.WorstTrade != -5 {
		t.Errorf("Expected best 10 / worst -5, got %f / %f", perf.BestTrade, perf.WorstTrade)
	}
	if perf.MaxDrawdown != -5 {
		t.Errorf("Expected max drawdown -5, got %f", perf.MaxDrawdown)
	}
	if perf.AverageHoldingTime != 4*time.Hour {
		t.Errorf("Expected average holding 4h, got %v", perf.AverageHoldingTime)
	}

	// simplified sharpe: mean / population stddev of [10, -5, 5]
	mean := 10.0 / 3.0
	variance := (math.Pow(10-mean, 2) + math.Pow(-5-mean, 2) + math.Pow(5-mean, 2)) / 3
	wantSharpe := mean / math.Sqrt(variance)
	if math.Abs(perf.SharpeRatio-wantSharpe) > 1e-9 {
		t.Errorf("Expected sharpe %f, got %f", wantSharpe, perf.SharpeRatio)
	}
}

func TestAggregateSharpeDegenerateCases(t *testing.T) {
	// a single trade has no dispersion to measure
	perf := Aggregate([]Result{pctResult(1, 10, time.Hour)})
	if perf.SharpeRatio != 0 {
		t.Errorf("Expected sharpe 0 for one trade, got %f", perf.SharpeRatio)
	}

	// zero volatility must not divide by zero
	perf = Aggregate([]Result{
		pctResult(1, 5, time.Hour),
		pctResult(2, 5, time.Hour),
	})
	if perf.SharpeRatio != 0 {
		t.Errorf("Expected sharpe 0 for zero volatility, got %f", perf.SharpeRatio)
	}
}

func TestAggregateRecentWindow(t *testing.T) {
	var results []Result
	for i := 0; i < 12; i++ {
		results = append(results, pctResult(i, float64(i), time.Hour))
	}

	perf := Aggregate(results)
	if len(perf.RecentResults) != 10 {
		t.Fatalf("Expected 10 recent results, got %d", len(perf.RecentResults))
	}
	// chronological order, trailing window
	if perf.RecentResults[0].PnLPercentage != 2 || perf.RecentResults[9].PnLPercentage != 11 {
		t.Errorf("Expected trailing window [2..11], got first %f last %f",
			perf.RecentResults[0].PnLPercentage, perf.RecentResults[9].PnLPercentage)
	}
}
