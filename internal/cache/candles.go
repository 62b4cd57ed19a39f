// Package cache provides Redis-backed candle caching with graceful
// degradation: when Redis is unavailable every lookup is a miss and the
// caller falls through to its provider.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
)

// Config holds Redis connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// CandleCache caches candle windows per symbol/timeframe with a TTL
// matched to the timeframe.
type CandleCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*CandleCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis cache is not enabled in configuration")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &CandleCache{
		client: client,
		log:    log.With().Str("component", "candle_cache").Logger(),
	}, nil
}

// Get returns the cached window or nil on any miss or Redis failure.
func (c *CandleCache) Get(ctx context.Context, symbol string, tf market.Timeframe) market.Series {
	data, err := c.client.Get(ctx, cacheKey(symbol, tf)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Msg("cache read failed, treating as miss")
		}
		return nil
	}
	var candles market.Series
	if err := json.Unmarshal(data, &candles); err != nil {
		c.log.Debug().Err(err).Msg("cache entry corrupt, treating as miss")
		return nil
	}
	return candles
}

// Set stores the window with a timeframe-appropriate TTL, best effort.
func (c *CandleCache) Set(ctx context.Context, symbol string, tf market.Timeframe, candles market.Series) {
	data, err := json.Marshal(candles)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(symbol, tf), data, cacheTTL(tf)).Err(); err != nil {
		c.log.Debug().Err(err).Msg("cache write failed")
	}
}

// Close releases the Redis connection.
func (c *CandleCache) Close() error {
	return c.client.Close()
}

func cacheKey(symbol string, tf market.Timeframe) string {
	return fmt.Sprintf("candles:%s:%s", symbol, tf)
}

// cacheTTL keeps shorter timeframes fresher.
func cacheTTL(tf market.Timeframe) time.Duration {
	switch tf {
	case market.TF1m:
		return 30 * time.Second
	case market.TF5m:
		return 2 * time.Minute
	case market.TF15m:
		return 5 * time.Minute
	case market.TF1h:
		return 30 * time.Minute
	case market.TF4h:
		return 2 * time.Hour
	case market.TF1d:
		return 12 * time.Hour
	default:
		return time.Minute
	}
}
