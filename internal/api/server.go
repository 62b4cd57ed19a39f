// Package api exposes the signal registry and backtester over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/engine"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

// Config holds HTTP server settings.
type Config struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// BacktestDefaults are the server-side fallbacks for on-demand backtest
// requests; any of them can be overridden per request.
type BacktestDefaults struct {
	WalkForward backtest.WalkForwardConfig
	TieBreak    backtest.TieBreakPolicy
	Period      int // candles fetched when the request names no period
}

// Server serves the REST API.
type Server struct {
	cfg            Config
	engine         *engine.Engine
	registry       *signal.Registry
	provider       market.CandleProvider
	walkCfg        backtest.WalkForwardConfig
	tieBreak       backtest.TieBreakPolicy
	backtestPeriod int
	log            zerolog.Logger
	http           *http.Server
}

// NewServer creates the API server, defaulting invalid knobs.
func NewServer(
	cfg Config,
	eng *engine.Engine,
	registry *signal.Registry,
	provider market.CandleProvider,
	defaults BacktestDefaults,
	log zerolog.Logger,
) *Server {
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10
	}
	if defaults.Period <= 0 {
		defaults.Period = 1000
	}
	return &Server{
		cfg:            cfg,
		engine:         eng,
		registry:       registry,
		provider:       provider,
		walkCfg:        defaults.WalkForward,
		tieBreak:       defaults.TieBreak,
		backtestPeriod: defaults.Period,
		log:            log.With().Str("component", "api").Logger(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	corsConfig := cors.DefaultConfig()
	if s.cfg.AllowedOrigins == "" || s.cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(s.cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.handleHealth)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/signals", s.handleGetSignals)
		apiGroup.GET("/signals/history", s.handleGetHistory)
		apiGroup.PATCH("/signals/:id/status", s.handleUpdateStatus)
		apiGroup.POST("/scan/:symbol", s.handleScan)
		apiGroup.POST("/backtest", s.handleBacktest)
	}
	return router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("api server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownTimeout)*time.Second)
		defer cancel()
		return s.http.Shutdown(sctx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
