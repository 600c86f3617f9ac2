// Package strategy implements the signal-generation and equity-curve
// engines: SMA crossover, mean-reversion z-score, and the shared series
// transforms (periodic returns, one-bar signal lag, compounding, horizon
// windowing). Every function is a pure transform over request-local data;
// engines never fail on a valid price series — insufficient history simply
// yields undefined indicators and a flat equity curve.
package strategy

import (
	"time"

	"tradelab/internal/domain"
)

// Returns computes periodic simple returns from a close series:
// r_t = close_t/close_{t-1} - 1. The first element is 0 (no prior bar).
func Returns(closes []float64) []float64 {
	rets := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		rets[i] = closes[i]/closes[i-1] - 1
	}
	return rets
}

// LagSignals shifts a signal series by exactly one bar so that
// position[t] = signal[t-1] and position[0] = 0. Every engine routes its
// signals through this single transform; the one-bar lag is the mechanism
// preventing lookahead bias and must not be bypassed.
func LagSignals(signals []int) []int {
	positions := make([]int, len(signals))
	for i := 1; i < len(signals); i++ {
		positions[i] = signals[i-1]
	}
	return positions
}

// CompoundEquity compounds a return series into an equity curve seeded at
// initialCapital: equity_t = initialCapital * Π_{i<=t}(1+r_i). Because the
// first return of any series is 0, equity_0 equals initialCapital.
func CompoundEquity(returns []float64, initialCapital float64) []float64 {
	equity := make([]float64, len(returns))
	acc := initialCapital
	for i, r := range returns {
		acc *= 1 + r
		equity[i] = acc
	}
	return equity
}

// Series is the per-bar output table common to every strategy engine.
type Series struct {
	Dates          []time.Time
	Close          []float64
	Ret            []float64
	Signal         []int
	Position       []int
	StrategyRet    []float64
	StrategyEquity []float64
	BuyHoldEquity  []float64
}

// finish derives the lag-dependent columns from Dates/Close/Ret/Signal:
// position, strategy return, and both equity curves.
func (s *Series) finish(initialCapital float64) {
	s.Position = LagSignals(s.Signal)

	s.StrategyRet = make([]float64, len(s.Ret))
	for i := range s.Ret {
		s.StrategyRet[i] = float64(s.Position[i]) * s.Ret[i]
	}

	s.StrategyEquity = CompoundEquity(s.StrategyRet, initialCapital)
	s.BuyHoldEquity = CompoundEquity(s.Ret, initialCapital)
}

// Curve pairs a return series with its compounded equity values on a date
// axis. It is the unit of horizon windowing and metric computation.
type Curve struct {
	Dates  []time.Time
	Ret    []float64
	Equity []float64
}

// StrategyCurve returns the strategy-return leg of the result.
func (s *Series) StrategyCurve() Curve {
	return Curve{Dates: s.Dates, Ret: s.StrategyRet, Equity: s.StrategyEquity}
}

// BuyHoldCurve returns the buy-and-hold leg of the result.
func (s *Series) BuyHoldCurve() Curve {
	return Curve{Dates: s.Dates, Ret: s.Ret, Equity: s.BuyHoldEquity}
}

// BuyAndHold computes a plain buy-and-hold curve for a price series. Used
// for benchmark symbols that don't run a signal engine.
func BuyAndHold(prices domain.PriceSeries, initialCapital float64) Curve {
	rets := Returns(prices.Closes())
	return Curve{
		Dates:  prices.Dates(),
		Ret:    rets,
		Equity: CompoundEquity(rets, initialCapital),
	}
}
