// Package config loads engine configuration from config.json with
// environment overrides. Unrecognized JSON keys are ignored; invalid
// values for recognized keys fail fast at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	MarketConfig    MarketConfig    `json:"market"`
	EngineConfig    EngineConfig    `json:"engine"`
	AnalysisConfig  AnalysisConfig  `json:"analysis"`
	RiskConfig      RiskConfig      `json:"risk"`
	SentimentConfig SentimentConfig `json:"sentiment"`
	AlertConfig     AlertConfig     `json:"alert"`
	BacktestConfig  BacktestConfig  `json:"backtest"`
	ServerConfig    ServerConfig    `json:"server"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// MarketConfig holds the market-data source settings.
type MarketConfig struct {
	BaseURL    string `json:"base_url" validate:"omitempty,url"`
	StreamURL  string `json:"stream_url" validate:"omitempty,url"`
	UseStream  bool   `json:"use_stream"`
	WindowSize int    `json:"window_size" validate:"omitempty,gt=0"`
	MockMode   bool   `json:"mock_mode"` // serve synthetic data when the exchange is unreachable
}

// EngineConfig holds the scan loop settings.
type EngineConfig struct {
	Symbols           []string `json:"symbols" validate:"required,min=1"`
	Timeframes        []string `json:"timeframes" validate:"required,min=1,dive,oneof=1m 5m 15m 1h 4h 1d"`
	PrimaryTimeframe  string   `json:"primary_timeframe" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	CandleLimit       int      `json:"candle_limit" validate:"omitempty,gt=0"`
	ScanIntervalSecs  int      `json:"scan_interval_secs" validate:"omitempty,gt=0"`
	SweepIntervalSecs int      `json:"sweep_interval_secs" validate:"omitempty,gt=0"`
}

// AnalysisConfig holds structural detector tuning.
type AnalysisConfig struct {
	MinCandles         int     `json:"min_candles" validate:"omitempty,gt=0"`
	SwingLookback      int     `json:"swing_lookback" validate:"omitempty,gt=0"`
	LevelTolerance     float64 `json:"level_tolerance" validate:"omitempty,gt=0"`
	MinGapPercent      float64 `json:"min_gap_percent" validate:"omitempty,gt=0"`
	DisplacementFactor float64 `json:"displacement_factor" validate:"omitempty,gt=1"`
	VolumeFactor       float64 `json:"volume_factor" validate:"omitempty,gt=0"`
	AveragePeriod      int     `json:"average_period" validate:"omitempty,gt=0"`
	AlignmentMargin    float64 `json:"alignment_margin" validate:"omitempty,gt=0,lt=1"`
}

// RiskConfig holds synthesis and validation thresholds.
type RiskConfig struct {
	MinRiskReward   float64 `json:"min_risk_reward" validate:"omitempty,gt=0"`
	StopLossPercent float64 `json:"stop_loss_percent" validate:"omitempty,gt=0,lte=50"`
	UseSMC          bool    `json:"use_smc"`
	ExpiryBars      int     `json:"expiry_bars" validate:"omitempty,gt=0"`
	MinConfidence   float64 `json:"min_confidence" validate:"omitempty,gt=0,lte=1"`
	MinFlowStrength float64 `json:"min_flow_strength" validate:"omitempty,gt=0,lte=1"`
}

// SentimentConfig holds the optional external sentiment source.
type SentimentConfig struct {
	Enabled     bool   `json:"enabled"`
	BaseURL     string `json:"base_url" validate:"omitempty,url"`
	TimeoutSecs int    `json:"timeout_secs" validate:"omitempty,gt=0"`
}

// AlertConfig holds alert filtering and delivery channels.
type AlertConfig struct {
	Enabled       bool     `json:"enabled"`
	MinConfidence float64  `json:"min_confidence" validate:"omitempty,gte=0,lte=1"`
	Symbols       []string `json:"symbols"` // empty = all symbols
	WebhookURL    string   `json:"webhook_url" validate:"omitempty,url"`
}

// BacktestConfig holds replay and walk-forward settings.
type BacktestConfig struct {
	WindowSize    int    `json:"window_size" validate:"omitempty,gt=0"`
	Step          int    `json:"step" validate:"omitempty,gt=0"`
	Workers       int    `json:"workers" validate:"omitempty,gt=0"`
	TieBreak      string `json:"tie_break" validate:"omitempty,oneof=stop_first target_first"`
	PeriodCandles int    `json:"period_candles" validate:"omitempty,gt=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port" validate:"omitempty,gt=0,lte=65535"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout" validate:"omitempty,gt=0"`
	WriteTimeout    int    `json:"write_timeout" validate:"omitempty,gt=0"`
	ShutdownTimeout int    `json:"shutdown_timeout" validate:"omitempty,gt=0"`
}

// DatabaseConfig holds signal-history persistence settings.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn" validate:"required_if=Enabled true"`
}

// RedisConfig holds candle-cache settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address" validate:"required_if=Enabled true"`
	Password string `json:"password"`
	DB       int    `json:"db" validate:"gte=0"`
	PoolSize int    `json:"pool_size" validate:"omitempty,gt=0"`
}

type LoggingConfig struct {
	Level  string `json:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `json:"format" validate:"omitempty,oneof=json console"`
	Output string `json:"output"` // stdout, stderr, or file path
}

// Load reads .env, config.json, and environment overrides, then
// validates. A missing config file falls back to defaults; an invalid
// recognized value aborts startup.
func Load() (*Config, error) {
	// best effort; absence of a .env file is normal
	_ = godotenv.Load()

	cfg, err := loadFromFile(getEnvOrDefault("CONFIG_FILE", "config.json"))
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.EngineConfig.Symbols) == 0 {
		cfg.EngineConfig.Symbols = []string{"BTCUSDT"}
	}
	if len(cfg.EngineConfig.Timeframes) == 0 {
		cfg.EngineConfig.Timeframes = []string{"15m", "1h", "4h"}
	}
	if cfg.EngineConfig.PrimaryTimeframe == "" {
		cfg.EngineConfig.PrimaryTimeframe = "1h"
	}
	if cfg.EngineConfig.CandleLimit == 0 {
		cfg.EngineConfig.CandleLimit = 200
	}
	if cfg.EngineConfig.ScanIntervalSecs == 0 {
		cfg.EngineConfig.ScanIntervalSecs = 60
	}
	if cfg.EngineConfig.SweepIntervalSecs == 0 {
		cfg.EngineConfig.SweepIntervalSecs = 30
	}
	if cfg.RiskConfig.MinRiskReward == 0 {
		cfg.RiskConfig.MinRiskReward = 2.0
	}
	if cfg.RiskConfig.StopLossPercent == 0 {
		cfg.RiskConfig.StopLossPercent = 2.0
	}
	if cfg.RiskConfig.ExpiryBars == 0 {
		cfg.RiskConfig.ExpiryBars = 24
	}
	if cfg.RiskConfig.MinConfidence == 0 {
		cfg.RiskConfig.MinConfidence = 0.6
	}
	if cfg.BacktestConfig.TieBreak == "" {
		cfg.BacktestConfig.TieBreak = "stop_first"
	}
	if cfg.BacktestConfig.PeriodCandles == 0 {
		cfg.BacktestConfig.PeriodCandles = 1000
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Format == "" {
		cfg.LoggingConfig.Format = "json"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
}

// applyEnvOverrides applies environment variable overrides; they take
// precedence over the file.
func applyEnvOverrides(cfg *Config) {
	// Market config
	cfg.MarketConfig.BaseURL = getEnvOrDefault("MARKET_BASE_URL", cfg.MarketConfig.BaseURL)
	cfg.MarketConfig.StreamURL = getEnvOrDefault("MARKET_STREAM_URL", cfg.MarketConfig.StreamURL)
	cfg.MarketConfig.UseStream = getEnvBoolOrDefault("MARKET_USE_STREAM", cfg.MarketConfig.UseStream)
	cfg.MarketConfig.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.MarketConfig.MockMode)

	// Engine config
	if symbols := os.Getenv("ENGINE_SYMBOLS"); symbols != "" {
		cfg.EngineConfig.Symbols = splitList(symbols)
	}
	if tfs := os.Getenv("ENGINE_TIMEFRAMES"); tfs != "" {
		cfg.EngineConfig.Timeframes = splitList(tfs)
	}
	cfg.EngineConfig.PrimaryTimeframe = getEnvOrDefault("ENGINE_PRIMARY_TIMEFRAME", cfg.EngineConfig.PrimaryTimeframe)
	cfg.EngineConfig.ScanIntervalSecs = getEnvIntOrDefault("ENGINE_SCAN_INTERVAL", cfg.EngineConfig.ScanIntervalSecs)

	// Risk config
	cfg.RiskConfig.MinRiskReward = getEnvFloatOrDefault("RISK_MIN_RISK_REWARD", cfg.RiskConfig.MinRiskReward)
	cfg.RiskConfig.StopLossPercent = getEnvFloatOrDefault("RISK_STOP_LOSS_PERCENT", cfg.RiskConfig.StopLossPercent)
	cfg.RiskConfig.UseSMC = getEnvBoolOrDefault("RISK_USE_SMC", cfg.RiskConfig.UseSMC)
	cfg.RiskConfig.MinConfidence = getEnvFloatOrDefault("RISK_MIN_CONFIDENCE", cfg.RiskConfig.MinConfidence)

	// Sentiment config
	cfg.SentimentConfig.Enabled = getEnvBoolOrDefault("SENTIMENT_ENABLED", cfg.SentimentConfig.Enabled)
	cfg.SentimentConfig.BaseURL = getEnvOrDefault("SENTIMENT_BASE_URL", cfg.SentimentConfig.BaseURL)

	// Alert config
	cfg.AlertConfig.Enabled = getEnvBoolOrDefault("ALERTS_ENABLED", cfg.AlertConfig.Enabled)
	cfg.AlertConfig.WebhookURL = getEnvOrDefault("ALERT_WEBHOOK_URL", cfg.AlertConfig.WebhookURL)

	// Server config
	cfg.ServerConfig.Enabled = getEnvBoolOrDefault("SERVER_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DATABASE_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.DSN = getEnvOrDefault("DATABASE_DSN", cfg.DatabaseConfig.DSN)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Format = getEnvOrDefault("LOG_FORMAT", cfg.LoggingConfig.Format)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
}

// ScanInterval returns the scan interval as a duration.
func (c EngineConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSecs) * time.Second
}

// SweepInterval returns the expiry sweep interval as a duration.
func (c EngineConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSecs) * time.Second
}

// Timeout returns the sentiment query timeout as a duration.
func (c SentimentConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &config, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a commented starting-point configuration.
func GenerateSampleConfig(filename string) error {
	config := Config{
		MarketConfig: MarketConfig{
			BaseURL:    "https://api.binance.com",
			WindowSize: 500,
		},
		EngineConfig: EngineConfig{
			Symbols:           []string{"BTCUSDT", "ETHUSDT"},
			Timeframes:        []string{"15m", "1h", "4h"},
			PrimaryTimeframe:  "1h",
			CandleLimit:       200,
			ScanIntervalSecs:  60,
			SweepIntervalSecs: 30,
		},
		RiskConfig: RiskConfig{
			MinRiskReward:   2.0,
			StopLossPercent: 2.0,
			UseSMC:          true,
			ExpiryBars:      24,
			MinConfidence:   0.6,
		},
		SentimentConfig: SentimentConfig{
			Enabled:     true,
			TimeoutSecs: 5,
		},
		AlertConfig: AlertConfig{
			Enabled:       true,
			MinConfidence: 0.7,
		},
		BacktestConfig: BacktestConfig{
			WindowSize:    100,
			Step:          10,
			Workers:       4,
			TieBreak:      "stop_first",
			PeriodCandles: 1000,
		},
		ServerConfig: ServerConfig{
			Enabled:        true,
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: "*",
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
