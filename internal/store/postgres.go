// Package store persists terminal signal history to Postgres. The
// registry treats persistence as optional supporting infrastructure; the
// pipeline never blocks on it.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

const schema = `
CREATE TABLE IF NOT EXISTS signal_history (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	type TEXT NOT NULL,
	entry DOUBLE PRECISION NOT NULL,
	stop_loss DOUBLE PRECISION NOT NULL,
	take_profit DOUBLE PRECISION[] NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	risk_reward DOUBLE PRECISION NOT NULL,
	timeframe TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	smc_factors INTEGER NOT NULL DEFAULT 0,
	reasoning TEXT[] NOT NULL DEFAULT '{}',
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_signal_history_symbol ON signal_history(symbol, created_at DESC);
`

// PostgresStore implements signal.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate signal_history: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  log.With().Str("component", "store").Logger(),
	}, nil
}

// SaveSignal upserts one terminal signal.
func (s *PostgresStore) SaveSignal(ctx context.Context, sig *signal.TradingSignal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signal_history
			(id, symbol, type, entry, stop_loss, take_profit, confidence,
			 risk_reward, timeframe, created_at, expires_at, status, priority,
			 smc_factors, reasoning)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		sig.ID, sig.Symbol, string(sig.Type), sig.Entry, sig.StopLoss,
		sig.TakeProfit, sig.Confidence, sig.RiskReward, string(sig.Timeframe),
		sig.Timestamp, sig.ExpiresAt, string(sig.Status), string(sig.Priority),
		sig.SMCFactors, sig.Reasoning)
	if err != nil {
		return fmt.Errorf("save signal %s: %w", sig.ID, err)
	}
	return nil
}

// History loads the most recent terminal signals for a symbol. An empty
// symbol loads across all symbols.
func (s *PostgresStore) History(ctx context.Context, symbol string, limit int) ([]*signal.TradingSignal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, type, entry, stop_loss, take_profit, confidence,
		       risk_reward, timeframe, created_at, expires_at, status, priority,
		       smc_factors, reasoning
		FROM signal_history
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query signal history: %w", err)
	}
	defer rows.Close()

	var out []*signal.TradingSignal
	for rows.Next() {
		var sig signal.TradingSignal
		var sigType, timeframe, status, priority string
		var createdAt, expiresAt time.Time
		if err := rows.Scan(&sig.ID, &sig.Symbol, &sigType, &sig.Entry, &sig.StopLoss,
			&sig.TakeProfit, &sig.Confidence, &sig.RiskReward, &timeframe,
			&createdAt, &expiresAt, &status, &priority, &sig.SMCFactors, &sig.Reasoning); err != nil {
			return nil, fmt.Errorf("scan signal history: %w", err)
		}
		sig.Type = signal.Type(sigType)
		sig.Timeframe = market.Timeframe(timeframe)
		sig.Timestamp = createdAt
		sig.ExpiresAt = expiresAt
		sig.Status = signal.Status(status)
		sig.Priority = signal.Priority(priority)
		out = append(out, &sig)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
