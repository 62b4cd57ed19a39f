package backtest

import (
	"math"
	"time"
)

// Performance aggregates statistics over a batch of backtest results.
// SharpeRatio here is the simplified mean/stddev of per-trade percentage
// returns, with no annualization or risk-free-rate adjustment; it is an
// approximation, not a finance-grade Sharpe.
type Performance struct {
	TotalTrades        int           `json:"total_trades"`
	WinningTrades      int           `json:"winning_trades"`
	LosingTrades       int           `json:"losing_trades"`
	WinRate            float64       `json:"win_rate"`     // 0.0 to 1.0
	AveragePnL         float64       `json:"average_pnl"`  // mean pnl percentage
	TotalReturn        float64       `json:"total_return"` // compounded, fractional
	SharpeRatio        float64       `json:"sharpe_ratio"`
	MaxDrawdown        float64       `json:"max_drawdown"` // worst per-trade excursion, percent
	AverageHoldingTime time.Duration `json:"average_holding_time"`
	BestTrade          float64       `json:"best_trade"`  // raw pnl
	WorstTrade         float64       `json:"worst_trade"` // raw pnl
	RecentResults      []Result      `json:"recent_results"`
}

// recentWindow is how many trailing results Aggregate keeps, in
// chronological order.
const recentWindow = 10

// Aggregate computes performance statistics over the results, which are
// expected in chronological order.
func Aggregate(results []Result) *Performance {
	perf := &Performance{TotalTrades: len(results)}
	if len(results) == 0 {
		return perf
	}

	var pnlSum float64
	var holdingSum time.Duration
	compounded := 1.0
	perf.BestTrade = results[0].PnL
	perf.WorstTrade = results[0].PnL

	for _, r := range results {
		if r.PnL > 0 {
			perf.WinningTrades++
		} else {
			perf.LosingTrades++
		}
		pnlSum += r.PnLPercentage
		compounded *= 1 + r.PnLPercentage/100
		holdingSum += r.HoldingTime

		if r.PnL > perf.BestTrade {
			perf.BestTrade = r.PnL
		}
		if r.PnL < perf.WorstTrade {
			perf.WorstTrade = r.PnL
		}
		if r.MaxDrawdown < perf.MaxDrawdown {
			perf.MaxDrawdown = r.MaxDrawdown
		}
	}

	n := float64(len(results))
	perf.WinRate = float64(perf.WinningTrades) / n
	perf.AveragePnL = pnlSum / n
	perf.TotalReturn = compounded - 1
	perf.SharpeRatio = sharpe(results, perf.AveragePnL)
	perf.AverageHoldingTime = holdingSum / time.Duration(len(results))

	start := len(results) - recentWindow
	if start < 0 {
		start = 0
	}
	perf.RecentResults = append([]Result(nil), results[start:]...)
	return perf
}

// sharpe computes mean/stddev of the percentage returns. Zero volatility
// yields zero rather than dividing by it.
func sharpe(results []Result, mean float64) float64 {
	if len(results) < 2 {
		return 0
	}
	variance := 0.0
	for _, r := range results {
		diff := r.PnLPercentage - mean
		variance += diff * diff
	}
	variance /= float64(len(results))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}
