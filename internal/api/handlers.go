package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/engine"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"active_signals": s.registry.ActiveCount(),
	})
}

// filterFromQuery builds a registry filter from query parameters. Unset
// parameters mean no constraint.
func filterFromQuery(c *gin.Context) signal.Filter {
	filter := signal.Filter{
		Symbol:    c.Query("symbol"),
		Timeframe: market.Timeframe(c.Query("timeframe")),
		Type:      signal.Type(c.Query("type")),
		Priority:  signal.Priority(c.Query("priority")),
	}
	if v, err := strconv.ParseFloat(c.Query("min_confidence"), 64); err == nil {
		filter.MinConfidence = v
	}
	if v, err := strconv.ParseFloat(c.Query("min_risk_reward"), 64); err == nil {
		filter.MinRiskReward = v
	}
	filter.SMCOnly = c.Query("smc_only") == "true"
	return filter
}

func (s *Server) handleGetSignals(c *gin.Context) {
	signals := s.registry.GetActive(filterFromQuery(c))
	c.JSON(http.StatusOK, gin.H{
		"signals": signals,
		"count":   len(signals),
	})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	signals := s.registry.GetHistory(filterFromQuery(c))
	c.JSON(http.StatusOK, gin.H{
		"signals": signals,
		"count":   len(signals),
	})
}

type statusRequest struct {
	Status signal.Status `json:"status" binding:"required"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Status {
	case signal.StatusExecuted, signal.StatusExpired, signal.StatusCancelled, signal.StatusActive:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	id := c.Param("id")
	if !s.registry.UpdateStatus(id, req.Status) {
		c.JSON(http.StatusConflict, gin.H{"error": "signal not active or unknown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// handleScan runs the generation pipeline for one symbol on demand.
func (s *Server) handleScan(c *gin.Context) {
	symbol := c.Param("symbol")
	sig, err := s.engine.GenerateSignal(c.Request.Context(), symbol)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrDataUnavailable) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if sig == nil {
		c.JSON(http.StatusOK, gin.H{"signal": nil, "message": "no tradeable setup"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": sig})
}

type backtestRequest struct {
	Symbol        string `json:"symbol" binding:"required"`
	Timeframe     string `json:"timeframe" binding:"required"`
	PeriodCandles int    `json:"period_candles"`
	WindowSize    int    `json:"window_size"`
	Step          int    `json:"step"`
	TieBreak      string `json:"tie_break"`
}

// handleBacktest runs a walk-forward sweep over recent history for one
// symbol/timeframe and returns the trades plus aggregate performance.
func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tf := market.Timeframe(req.Timeframe)
	if !tf.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe"})
		return
	}
	if req.PeriodCandles <= 0 {
		req.PeriodCandles = s.backtestPeriod
	}

	candles, err := s.provider.Candles(c.Request.Context(), req.Symbol, tf, req.PeriodCandles)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	walkCfg := s.walkCfg
	if req.WindowSize > 0 {
		walkCfg.WindowSize = req.WindowSize
	}
	if req.Step > 0 {
		walkCfg.Step = req.Step
	}
	tieBreak := s.tieBreak
	if req.TieBreak != "" {
		tieBreak = backtest.TieBreakPolicy(req.TieBreak)
	}

	simulator := backtest.NewSimulator(tieBreak)
	walker := backtest.NewWalkForward(walkCfg, simulator, s.log)
	results, err := walker.Run(c.Request.Context(), req.Symbol, tf, candles, s.engine)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":     results,
		"performance": backtest.Aggregate(results),
	})
}
