// Package metrics computes summary risk/return statistics from a periodic
// return series. All functions are pure: deterministic given the input
// sequence and annualization factor, no I/O, no shared state.
package metrics

import (
	"math"

	"tradelab/internal/domain"
)

// Annualization factors by bar period.
const (
	WeeksPerYear       = 52
	TradingDaysPerYear = 252
)

// Compute derives a MetricSummary from a periodic simple-return series.
// NaN entries are treated as zero returns. periodsPerYear is the number of
// bars in a calendar year (52 for weekly, 252 for daily).
func Compute(returns []float64, periodsPerYear int) domain.MetricSummary {
	rets := make([]float64, len(returns))
	for i, r := range returns {
		if math.IsNaN(r) {
			rets[i] = 0
		} else {
			rets[i] = r
		}
	}

	// Relative equity curve: cumulative product of (1+r).
	equity := 1.0
	runningMax := 1.0
	maxDrawdown := 0.0
	var sum, sumSq float64
	for _, r := range rets {
		equity *= 1 + r
		if equity > runningMax {
			runningMax = equity
		}
		if dd := equity/runningMax - 1; dd < maxDrawdown {
			maxDrawdown = dd
		}
		sum += r
		sumSq += r * r
	}

	cumulativeReturn := equity - 1

	// Floor years at one period to avoid division blow-up on tiny series.
	years := math.Max(float64(len(rets))/float64(periodsPerYear), 1/float64(periodsPerYear))
	cagr := math.Pow(equity, 1/years) - 1

	var volatility, sharpe float64
	if n := float64(len(rets)); n > 0 {
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance < 0 {
			variance = 0 // float round-off
		}
		volatility = math.Sqrt(variance) * math.Sqrt(float64(periodsPerYear))
		if volatility > 0 {
			sharpe = mean * float64(periodsPerYear) / volatility
		}
	}

	return domain.MetricSummary{
		CumulativeReturn: cumulativeReturn,
		CAGR:             cagr,
		MaxDrawdown:      maxDrawdown,
		Volatility:       volatility,
		SharpeRatio:      sharpe,
	}
}
