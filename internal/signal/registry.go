package signal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
)

// Store persists terminal signals. The registry works fully in memory; a
// nil store simply disables persistence.
type Store interface {
	SaveSignal(ctx context.Context, sig *TradingSignal) error
}

// Filter selects signals. Zero values mean "no constraint"; set fields
// compose with AND semantics.
type Filter struct {
	Symbol        string
	Timeframe     market.Timeframe
	MinConfidence float64
	MinRiskReward float64
	Type          Type
	SMCOnly       bool
	Priority      Priority
}

// Matches reports whether the signal satisfies every set constraint.
func (f Filter) Matches(sig *TradingSignal) bool {
	if f.Symbol != "" && sig.Symbol != f.Symbol {
		return false
	}
	if f.Timeframe != "" && sig.Timeframe != f.Timeframe {
		return false
	}
	if f.MinConfidence > 0 && sig.Confidence < f.MinConfidence {
		return false
	}
	if f.MinRiskReward > 0 && sig.RiskReward < f.MinRiskReward {
		return false
	}
	if f.Type != "" && sig.Type != f.Type {
		return false
	}
	if f.SMCOnly && sig.SMCFactors == 0 {
		return false
	}
	if f.Priority != "" && sig.Priority != f.Priority {
		return false
	}
	return true
}

// Registry manages active and historical signal sets. It is the only
// shared mutable state in the pipeline; every mutating operation is
// serialized by one mutex so a concurrent expire sweep cannot race a
// manual status update on the same id.
type Registry struct {
	mu      sync.Mutex
	active  map[string]*TradingSignal
	history []*TradingSignal
	store   Store
	log     zerolog.Logger

	maxHistory int
}

// NewRegistry creates a registry. store may be nil.
func NewRegistry(store Store, log zerolog.Logger) *Registry {
	return &Registry{
		active:     make(map[string]*TradingSignal),
		store:      store,
		log:        log.With().Str("component", "registry").Logger(),
		maxHistory: 1000,
	}
}

// Admit adds a validated signal to the active set. Signals failing
// validation are refused.
func (r *Registry) Admit(sig *TradingSignal, validation Validation) error {
	if !validation.OverallValid {
		return fmt.Errorf("signal %s failed validation (score %.2f)", sig.ID, validation.Score)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[sig.ID]; exists {
		return fmt.Errorf("signal %s already admitted", sig.ID)
	}
	sig.Status = StatusActive
	r.active[sig.ID] = sig
	r.log.Info().
		Str("signal_id", sig.ID).
		Str("symbol", sig.Symbol).
		Str("type", string(sig.Type)).
		Float64("confidence", sig.Confidence).
		Msg("signal admitted")
	return nil
}

// GetActive returns active signals matching the filter, newest first.
func (r *Registry) GetActive(filter Filter) []*TradingSignal {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*TradingSignal
	for _, sig := range r.active {
		if filter.Matches(sig) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// GetHistory returns terminal signals matching the filter, newest first.
func (r *Registry) GetHistory(filter Filter) []*TradingSignal {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*TradingSignal
	for _, sig := range r.history {
		if filter.Matches(sig) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// UpdateStatus transitions a signal. Transitions are monotonic: once a
// signal is terminal any further update is a no-op returning false.
func (r *Registry) UpdateStatus(id string, status Status) bool {
	r.mu.Lock()
	terminal, ok := r.transition(id, status)
	r.mu.Unlock()

	if terminal != nil {
		r.persist(terminal)
	}
	return ok
}

// transition must be called with the mutex held. When the transition
// made the signal terminal it is returned so the caller can persist it
// after releasing the lock; the store must never stall registry reads.
func (r *Registry) transition(id string, status Status) (*TradingSignal, bool) {
	sig, ok := r.active[id]
	if !ok {
		return nil, false
	}
	if sig.Status.IsTerminal() {
		return nil, false
	}
	sig.Status = status
	if !status.IsTerminal() {
		return nil, true
	}
	delete(r.active, id)
	r.history = append(r.history, sig)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
	return sig, true
}

// persist saves a terminal signal, best effort.
func (r *Registry) persist(sig *TradingSignal) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SaveSignal(ctx, sig); err != nil {
		r.log.Warn().Err(err).Str("signal_id", sig.ID).Msg("failed to persist signal")
	}
}

// ExpireSweep transitions every active signal past its expiry to expired
// and returns how many were swept. Persistence happens after the lock is
// released.
func (r *Registry) ExpireSweep(now time.Time) int {
	r.mu.Lock()
	var ids []string
	for id, sig := range r.active {
		if now.After(sig.ExpiresAt) {
			ids = append(ids, id)
		}
	}
	var expired []*TradingSignal
	for _, id := range ids {
		if sig, ok := r.transition(id, StatusExpired); ok && sig != nil {
			expired = append(expired, sig)
		}
	}
	r.mu.Unlock()

	for _, sig := range expired {
		r.persist(sig)
	}
	if len(expired) > 0 {
		r.log.Info().Int("count", len(expired)).Msg("expired signals swept")
	}
	return len(expired)
}

// ActiveCount returns the size of the active set.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
