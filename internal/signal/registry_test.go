package signal

import (
	"context"
	"testing"
	"time"

	"smc-signal-engine/internal/market"
)

func activeSignal(id, symbol string, confidence float64) *TradingSignal {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &TradingSignal{
		ID:         id,
		Symbol:     symbol,
		Type:       Buy,
		Entry:      100,
		StopLoss:   98,
		TakeProfit: []float64{104, 106, 110},
		Confidence: confidence,
		RiskReward: 2.0,
		Timeframe:  market.TF1h,
		Timestamp:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
		Status:     StatusActive,
		Priority:   PriorityMedium,
	}
}

func validResult() Validation {
	return Validation{Score: 1.0, OverallValid: true}
}

func TestAdmitRefusesInvalid(t *testing.T) {
	r := NewRegistry(nil, testLog)
	err := r.Admit(activeSignal("a", "BTCUSDT", 0.8), Validation{Score: 0.5})
	if err == nil {
		t.Error("Expected admission refusal for failed validation")
	}
	if r.ActiveCount() != 0 {
		t.Errorf("Expected empty active set, got %d", r.ActiveCount())
	}
}

func TestAdmitRejectsDuplicate(t *testing.T) {
	r := NewRegistry(nil, testLog)
	sig := activeSignal("a", "BTCUSDT", 0.8)
	if err := r.Admit(sig, validResult()); err != nil {
		t.Fatalf("first admit failed: %v", err)
	}
	if err := r.Admit(sig, validResult()); err == nil {
		t.Error("Expected duplicate admission to fail")
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	r := NewRegistry(nil, testLog)
	sig := activeSignal("a", "BTCUSDT", 0.8)
	if err := r.Admit(sig, validResult()); err != nil {
		t.Fatalf("admit failed: %v", err)
	}

	if !r.UpdateStatus("a", StatusExecuted) {
		t.Fatal("Expected transition to executed")
	}
	if sig.Status != StatusExecuted {
		t.Errorf("Expected executed, got %s", sig.Status)
	}

	// terminal signals never mutate again
	if r.UpdateStatus("a", StatusCancelled) {
		t.Error("Expected no-op on terminal signal")
	}
	if sig.Status != StatusExecuted {
		t.Errorf("Terminal status mutated to %s", sig.Status)
	}

	if r.ActiveCount() != 0 {
		t.Errorf("Expected terminal signal out of active set, got %d", r.ActiveCount())
	}
	history := r.GetHistory(Filter{})
	if len(history) != 1 || history[0].ID != "a" {
		t.Errorf("Expected signal in history, got %v", history)
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	r := NewRegistry(nil, testLog)
	if r.UpdateStatus("missing", StatusExecuted) {
		t.Error("Expected false for unknown signal id")
	}
}

func TestExpireSweep(t *testing.T) {
	r := NewRegistry(nil, testLog)
	fresh := activeSignal("fresh", "BTCUSDT", 0.8)
	stale := activeSignal("stale", "ETHUSDT", 0.8)
	stale.ExpiresAt = stale.Timestamp.Add(time.Hour)

	if err := r.Admit(fresh, validResult()); err != nil {
		t.Fatal(err)
	}
	if err := r.Admit(stale, validResult()); err != nil {
		t.Fatal(err)
	}

	swept := r.ExpireSweep(stale.Timestamp.Add(2 * time.Hour))
	if swept != 1 {
		t.Fatalf("Expected 1 swept signal, got %d", swept)
	}
	if stale.Status != StatusExpired {
		t.Errorf("Expected expired, got %s", stale.Status)
	}
	if fresh.Status != StatusActive {
		t.Errorf("Expected fresh signal untouched, got %s", fresh.Status)
	}
	if r.ActiveCount() != 1 {
		t.Errorf("Expected 1 active signal, got %d", r.ActiveCount())
	}
}

func TestGetActiveFilters(t *testing.T) {
	r := NewRegistry(nil, testLog)

	btc := activeSignal("btc", "BTCUSDT", 0.9)
	btc.SMCFactors = 2
	eth := activeSignal("eth", "ETHUSDT", 0.5)
	eth.Type = Sell
	eth.Priority = PriorityLow
	// reasoning text is audit-only and must never drive filtering
	eth.Reasoning = []string{"2 bullish order block(s) on 1h"}

	if err := r.Admit(btc, validResult()); err != nil {
		t.Fatal(err)
	}
	if err := r.Admit(eth, validResult()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no constraints", Filter{}, 2},
		{"by symbol", Filter{Symbol: "BTCUSDT"}, 1},
		{"by min confidence", Filter{MinConfidence: 0.8}, 1},
		{"by type", Filter{Type: Sell}, 1},
		{"by priority", Filter{Priority: PriorityMedium}, 1},
		{"smc only", Filter{SMCOnly: true}, 1},
		{"composed, AND semantics", Filter{Symbol: "BTCUSDT", Type: Sell}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(r.GetActive(tt.filter)); got != tt.want {
				t.Errorf("Expected %d signals, got %d", tt.want, got)
			}
		})
	}
}

func TestGetActiveNewestFirst(t *testing.T) {
	r := NewRegistry(nil, testLog)
	older := activeSignal("older", "BTCUSDT", 0.8)
	newer := activeSignal("newer", "BTCUSDT", 0.8)
	newer.Timestamp = older.Timestamp.Add(time.Hour)
	newer.ExpiresAt = newer.Timestamp.Add(24 * time.Hour)

	if err := r.Admit(older, validResult()); err != nil {
		t.Fatal(err)
	}
	if err := r.Admit(newer, validResult()); err != nil {
		t.Fatal(err)
	}

	active := r.GetActive(Filter{})
	if len(active) != 2 || active[0].ID != "newer" {
		t.Errorf("Expected newest first, got %v", []string{active[0].ID, active[1].ID})
	}
}

// recordingStore captures persisted signals.
type recordingStore struct {
	saved []string
}

func (rs *recordingStore) SaveSignal(_ context.Context, sig *TradingSignal) error {
	rs.saved = append(rs.saved, sig.ID)
	return nil
}

func TestTerminalSignalPersisted(t *testing.T) {
	store := &recordingStore{}
	r := NewRegistry(store, testLog)

	sig := activeSignal("a", "BTCUSDT", 0.8)
	if err := r.Admit(sig, validResult()); err != nil {
		t.Fatal(err)
	}
	r.UpdateStatus("a", StatusCancelled)

	if len(store.saved) != 1 || store.saved[0] != "a" {
		t.Errorf("Expected terminal signal persisted once, got %v", store.saved)
	}
}

// blockingStore stalls SaveSignal until released.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (bs *blockingStore) SaveSignal(context.Context, *TradingSignal) error {
	bs.entered <- struct{}{}
	<-bs.release
	return nil
}

// TestSlowStoreDoesNotBlockRegistry ensures a stalled persistence call
// never holds the registry lock against reads or admissions.
func TestSlowStoreDoesNotBlockRegistry(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRegistry(store, testLog)

	if err := r.Admit(activeSignal("a", "BTCUSDT", 0.8), validResult()); err != nil {
		t.Fatal(err)
	}

	updated := make(chan bool)
	go func() { updated <- r.UpdateStatus("a", StatusExecuted) }()
	<-store.entered // persistence now in flight

	read := make(chan int)
	go func() { read <- r.ActiveCount() }()
	select {
	case n := <-read:
		if n != 0 {
			t.Errorf("Expected empty active set, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("registry read blocked while persistence was in flight")
	}

	close(store.release)
	if !<-updated {
		t.Error("Expected the status update to succeed")
	}
}
