package analysis

import (
	"math"
	"testing"

	"smc-signal-engine/internal/market"
)

// breakSeries produces a swing high at index 2 (high 12.5) that candle 6
// closes above once the swing is confirmed.
func breakSeries() market.Series {
	return market.Series{
		{Timestamp: ts(0), Open: 10, High: 10.5, Low: 9.5, Close: 10},
		{Timestamp: ts(1), Open: 11, High: 11.5, Low: 10.5, Close: 11},
		{Timestamp: ts(2), Open: 12, High: 12.5, Low: 11.5, Close: 12},
		{Timestamp: ts(3), Open: 10.5, High: 11, Low: 10, Close: 10.5},
		{Timestamp: ts(4), Open: 10, High: 10.5, Low: 9.5, Close: 10},
		{Timestamp: ts(5), Open: 10.2, High: 11, Low: 10, Close: 10.8},
		{Timestamp: ts(6), Open: 10.8, High: 13, Low: 10.5, Close: 12.9},
	}
}

func TestSwingHighs(t *testing.T) {
	detector := NewStructureDetector(2, 0.01)
	highs := detector.SwingHighs(breakSeries())

	if len(highs) != 1 {
		t.Fatalf("Expected 1 swing high, got %d", len(highs))
	}
	if highs[0].Price != 12.5 {
		t.Errorf("Expected swing high 12.5, got %f", highs[0].Price)
	}
	if highs[0].CandleIndex != 2 {
		t.Errorf("Expected swing at index 2, got %d", highs[0].CandleIndex)
	}
}

func TestBullishStructureBreak(t *testing.T) {
	detector := NewStructureDetector(2, 0.01)
	breaks := detector.StructureBreaks(breakSeries())

	var bullish []StructureBreak
	for _, b := range breaks {
		if b.Direction == Bullish {
			bullish = append(bullish, b)
		}
	}
	if len(bullish) != 1 {
		t.Fatalf("Expected 1 bullish break, got %d", len(bullish))
	}
	b := bullish[0]
	if b.Level != 12.5 {
		t.Errorf("Expected broken level 12.5, got %f", b.Level)
	}
	if b.CandleIndex != 6 {
		t.Errorf("Expected break at candle 6, got %d", b.CandleIndex)
	}
	if b.Strength <= 0 || b.Strength > 1 {
		t.Errorf("Expected strength in (0, 1], got %f", b.Strength)
	}
}

// TestBreakRequiresConfirmedSwing ensures a close beyond a swing level
// before the swing is confirmed does not count as a break.
func TestBreakRequiresConfirmedSwing(t *testing.T) {
	detector := NewStructureDetector(2, 0.01)

	// The high at index 2 would be broken by index 3, but a swing at
	// index 2 with lookback 2 is not confirmed until index 5.
	candles := market.Series{
		{Timestamp: ts(0), Open: 10, High: 10.5, Low: 9.5, Close: 10},
		{Timestamp: ts(1), Open: 11, High: 11.5, Low: 10.5, Close: 11},
		{Timestamp: ts(2), Open: 12, High: 12.5, Low: 11.5, Close: 12},
		{Timestamp: ts(3), Open: 12, High: 13.5, Low: 11.8, Close: 13},
	}

	for _, b := range detector.StructureBreaks(candles) {
		if b.Direction == Bullish {
			t.Errorf("Unexpected bullish break at candle %d before swing confirmation", b.CandleIndex)
		}
	}
}

func TestKeyLevelsClustering(t *testing.T) {
	detector := NewStructureDetector(2, 0.01)

	// Two swing lows at 9.0 and 9.05, within 1% of each other.
	candles := market.Series{
		{Timestamp: ts(0), Open: 10.2, High: 10.5, Low: 10, Close: 10.2},
		{Timestamp: ts(1), Open: 9.8, High: 10.2, Low: 9.6, Close: 9.8},
		{Timestamp: ts(2), Open: 9.3, High: 9.6, Low: 9.0, Close: 9.3},
		{Timestamp: ts(3), Open: 9.8, High: 10.2, Low: 9.6, Close: 9.8},
		{Timestamp: ts(4), Open: 10.5, High: 11, Low: 10, Close: 10.5},
		{Timestamp: ts(5), Open: 9.9, High: 10.3, Low: 9.7, Close: 9.9},
		{Timestamp: ts(6), Open: 9.4, High: 9.7, Low: 9.05, Close: 9.4},
		{Timestamp: ts(7), Open: 9.8, High: 10.1, Low: 9.5, Close: 9.8},
		{Timestamp: ts(8), Open: 10.2, High: 10.6, Low: 10, Close: 10.2},
	}

	var supports []KeyLevel
	for _, lv := range detector.KeyLevels(candles) {
		if lv.Kind == Support {
			supports = append(supports, lv)
		}
	}
	if len(supports) != 1 {
		t.Fatalf("Expected 1 clustered support, got %d", len(supports))
	}
	if supports[0].Touches != 2 {
		t.Errorf("Expected 2 touches, got %d", supports[0].Touches)
	}
	want := (9.0 + 9.05) / 2
	if math.Abs(supports[0].Price-want) > 1e-9 {
		t.Errorf("Expected touch-weighted price %f, got %f", want, supports[0].Price)
	}
}
