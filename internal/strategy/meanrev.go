package strategy

import (
	"math"

	"tradelab/internal/domain"
)

// MeanReversionParams configures the z-score engine. StopLossPct and
// MaxHoldingBars are disabled when <= 0.
type MeanReversionParams struct {
	Lookback       int
	EntryZ         float64
	ExitZ          float64
	StopLossPct    float64
	MaxHoldingBars int
	AllowShort     bool
}

// DefaultMeanReversionParams returns the standard engine parameters:
// 20-bar lookback, entry at |z| >= 2, exit at |z| <= 0.5, shorting allowed,
// no stop loss, no timed exit.
func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		Lookback:   20,
		EntryZ:     2.0,
		ExitZ:      0.5,
		AllowShort: true,
	}
}

// MeanReversionResult is the per-bar output of the mean-reversion engine.
// Mean, Std, and ZScore are NaN until the lookback window fills; ZScore is
// also NaN when the rolling standard deviation is zero.
type MeanReversionResult struct {
	Series
	Mean   []float64
	Std    []float64
	ZScore []float64
}

// holdState is the tagged position state carried through the forward scan:
// direction, the fill price of the open trade, and how many bars it has
// been held.
type holdState struct {
	dir        int // -1 short, 0 flat, +1 long
	entryPrice float64
	barsHeld   int
}

// step advances the state machine by one bar, returning the next state and
// the signal recorded for the bar. zOK reports whether the z-score is
// defined. A bar that exits records signal 0: the position is closed for
// that bar and no same-bar re-entry is considered, even if the z-score
// would qualify for the opposite side.
func (p MeanReversionParams) step(st holdState, close, z float64, zOK bool) (holdState, int) {
	if st.dir == 0 {
		if zOK && z <= -p.EntryZ {
			return holdState{dir: 1, entryPrice: close}, 1
		}
		if zOK && p.AllowShort && z >= p.EntryZ {
			return holdState{dir: -1, entryPrice: close}, -1
		}
		return st, 0
	}

	st.barsHeld++

	meanRevExit := zOK && ((st.dir > 0 && z >= -p.ExitZ) || (st.dir < 0 && z <= p.ExitZ))

	stopHit := false
	if p.StopLossPct > 0 && st.entryPrice > 0 {
		pnl := close/st.entryPrice - 1
		if st.dir < 0 {
			pnl = st.entryPrice/close - 1
		}
		stopHit = pnl <= -p.StopLossPct
	}

	timedExit := p.MaxHoldingBars > 0 && st.barsHeld >= p.MaxHoldingBars

	if meanRevExit || stopHit || timedExit {
		return holdState{}, 0
	}
	return st, st.dir
}

// RunMeanReversionZScore runs the mean-reversion z-score engine over a
// price series. Entries and exits are evaluated sequentially one bar at a
// time; each bar's transition depends on the previous bar's state, so the
// scan cannot be parallelized across bars.
func RunMeanReversionZScore(prices domain.PriceSeries, initialCapital float64, params MeanReversionParams) *MeanReversionResult {
	n := len(prices)
	closes := prices.Closes()

	res := &MeanReversionResult{
		Series: Series{
			Dates:  prices.Dates(),
			Close:  closes,
			Ret:    Returns(closes),
			Signal: make([]int, n),
		},
		Mean:   make([]float64, n),
		Std:    make([]float64, n),
		ZScore: make([]float64, n),
	}

	window := newRollingWindow(params.Lookback)
	var st holdState

	for i, c := range closes {
		window.Push(c)

		res.Mean[i] = math.NaN()
		res.Std[i] = math.NaN()
		res.ZScore[i] = math.NaN()
		zOK := false
		if window.Full() {
			res.Mean[i] = window.Mean()
			res.Std[i] = window.Std()
			// Zero dispersion leaves the z-score undefined.
			if res.Std[i] > 0 {
				res.ZScore[i] = (c - res.Mean[i]) / res.Std[i]
				zOK = true
			} else {
				res.Std[i] = math.NaN()
			}
		}

		st, res.Signal[i] = params.step(st, c, res.ZScore[i], zOK)
	}

	res.finish(initialCapital)
	return res
}
