package backtest

import (
	"testing"
	"time"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

func ts(i int) time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
}

func testBuySignal() *signal.TradingSignal {
	return &signal.TradingSignal{
		ID:         "sig-1",
		Symbol:     "BTCUSDT",
		Type:       signal.Buy,
		Entry:      100,
		StopLoss:   98,
		TakeProfit: []float64{104, 106, 110},
		Timeframe:  market.TF1h,
		Timestamp:  ts(0),
		ExpiresAt:  ts(24),
	}
}

func flat(i int) market.Candle {
	return market.Candle{Timestamp: ts(i), Open: 100, High: 101, Low: 99.5, Close: 100, Volume: 10}
}

func TestSimulatorStopLossExit(t *testing.T) {
	sim := NewSimulator(StopFirst)
	candles := market.Series{
		flat(1),
		{Timestamp: ts(2), Open: 100, High: 100.5, Low: 97, Close: 98.5, Volume: 10},
	}

	result, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitReason != ExitStopLoss {
		t.Errorf("Expected stop_loss exit, got %s", result.ExitReason)
	}
	if result.ExitPrice != 98 {
		t.Errorf("Expected exit at stop 98, got %f", result.ExitPrice)
	}
	if result.PnL != -2 {
		t.Errorf("Expected PnL -2, got %f", result.PnL)
	}
	if result.PnLPercentage != -2 {
		t.Errorf("Expected -2%%, got %f", result.PnLPercentage)
	}
	if !result.ExitTime.Equal(ts(2)) {
		t.Errorf("Expected exit at candle 2, got %v", result.ExitTime)
	}
	if result.HoldingTime != 2*time.Hour {
		t.Errorf("Expected 2h holding time, got %v", result.HoldingTime)
	}
}

func TestSimulatorTakeProfitExit(t *testing.T) {
	sim := NewSimulator(StopFirst)
	candles := market.Series{
		flat(1),
		{Timestamp: ts(2), Open: 100, High: 107, Low: 99.5, Close: 106.5, Volume: 10},
	}

	result, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitReason != ExitTakeProfit {
		t.Errorf("Expected take_profit exit, got %s", result.ExitReason)
	}
	// tiers check in ascending order; the nearest breached tier wins
	if result.ExitPrice != 104 {
		t.Errorf("Expected exit at first tier 104, got %f", result.ExitPrice)
	}
	if result.PnL != 4 {
		t.Errorf("Expected PnL 4, got %f", result.PnL)
	}
}

// TestSimulatorTieBreak covers a candle whose range touches both the
// stop and a target.
func TestSimulatorTieBreak(t *testing.T) {
	candles := market.Series{
		{Timestamp: ts(1), Open: 100, High: 105, Low: 97, Close: 101, Volume: 10},
	}

	stopResult, err := NewSimulator(StopFirst).Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stopResult.ExitReason != ExitStopLoss {
		t.Errorf("stop_first: expected stop_loss, got %s", stopResult.ExitReason)
	}

	targetResult, err := NewSimulator(TargetFirst).Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if targetResult.ExitReason != ExitTakeProfit {
		t.Errorf("target_first: expected take_profit, got %s", targetResult.ExitReason)
	}
	if targetResult.ExitPrice != 104 {
		t.Errorf("target_first: expected exit 104, got %f", targetResult.ExitPrice)
	}
}

func TestSimulatorExpiryExit(t *testing.T) {
	sim := NewSimulator(StopFirst)
	candles := market.Series{
		flat(23),
		// first candle past expiry; exits at its close before excursion
		// or level checks
		{Timestamp: ts(25), Open: 100, High: 120, Low: 90, Close: 102, Volume: 10},
	}

	result, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitReason != ExitTime {
		t.Errorf("Expected time_exit, got %s", result.ExitReason)
	}
	if result.ExitPrice != 102 {
		t.Errorf("Expected exit at close 102, got %f", result.ExitPrice)
	}
	// the expiring candle's extremes must not count toward excursions
	if result.MaxProfit > 1.1 {
		t.Errorf("Expiring candle leaked into MaxProfit: %f", result.MaxProfit)
	}
}

func TestSimulatorDataExhaustion(t *testing.T) {
	sim := NewSimulator(StopFirst)
	candles := market.Series{flat(1), flat(2), flat(3)}

	result, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitReason != ExitTime {
		t.Errorf("Expected time_exit on exhausted data, got %s", result.ExitReason)
	}
	if !result.ExitTime.Equal(ts(3)) {
		t.Errorf("Expected exit at last candle, got %v", result.ExitTime)
	}
}

func TestSimulatorSellDirection(t *testing.T) {
	sig := testBuySignal()
	sig.Type = signal.Sell
	sig.StopLoss = 102
	sig.TakeProfit = []float64{96, 94, 90}

	sim := NewSimulator(StopFirst)
	candles := market.Series{
		{Timestamp: ts(1), Open: 100, High: 103, Low: 99, Close: 102.5, Volume: 10},
	}

	result, err := sim.Run(sig, candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitReason != ExitStopLoss {
		t.Errorf("Expected sell stop on high breach, got %s", result.ExitReason)
	}
	if result.PnL != -2 {
		t.Errorf("Expected PnL -2, got %f", result.PnL)
	}
}

func TestSimulatorExcursionTracking(t *testing.T) {
	sim := NewSimulator(StopFirst)
	candles := market.Series{
		{Timestamp: ts(1), Open: 100, High: 103, Low: 99, Close: 100, Volume: 10},
		{Timestamp: ts(2), Open: 100, High: 100.5, Low: 98.5, Close: 100, Volume: 10},
		{Timestamp: ts(3), Open: 100, High: 107, Low: 99.5, Close: 105, Volume: 10},
	}

	result, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.MaxProfit < 2.9 {
		t.Errorf("Expected MaxProfit to capture the 103 high, got %f", result.MaxProfit)
	}
	if result.MaxDrawdown > -1.4 {
		t.Errorf("Expected MaxDrawdown to capture the 98.5 low, got %f", result.MaxDrawdown)
	}
}

func TestSimulatorEmptySeries(t *testing.T) {
	sim := NewSimulator(StopFirst)
	if _, err := sim.Run(testBuySignal(), nil); err == nil {
		t.Error("Expected error for empty candle series")
	}
}

// TestSimulatorDeterministic replays the same inputs twice.
func TestSimulatorDeterministic(t *testing.T) {
	sim := NewSimulator(StopFirst)
	candles := market.Series{
		flat(1),
		{Timestamp: ts(2), Open: 100, High: 105, Low: 97, Close: 101, Volume: 10},
	}

	a, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatal(err)
	}
	b, err := sim.Run(testBuySignal(), candles)
	if err != nil {
		t.Fatal(err)
	}
	if *a != *b {
		t.Errorf("Expected identical results, got %+v vs %+v", a, b)
	}
}
