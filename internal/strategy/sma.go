package strategy

import (
	"math"

	"tradelab/internal/domain"
)

// SMA crossover windows, in bars.
const (
	smaFastWindow = 5
	smaSlowWindow = 20
)

// SMAResult is the per-bar output of the SMA crossover engine. The moving
// average columns are NaN until their windows fill.
type SMAResult struct {
	Series
	SMAFast []float64
	SMASlow []float64
}

// RunSMACrossover runs the 5/20-bar simple-moving-average crossover over a
// price series. The signal is +1 when both averages are defined and the
// fast average is above the slow one. In long_short mode the signal is -1
// when both are defined and fast <= slow; in long_only mode it is never
// negative. Until both windows fill the signal is 0.
func RunSMACrossover(prices domain.PriceSeries, initialCapital float64, mode domain.PositionMode) *SMAResult {
	n := len(prices)
	closes := prices.Closes()

	res := &SMAResult{
		Series: Series{
			Dates:  prices.Dates(),
			Close:  closes,
			Ret:    Returns(closes),
			Signal: make([]int, n),
		},
		SMAFast: make([]float64, n),
		SMASlow: make([]float64, n),
	}

	fast := newRollingWindow(smaFastWindow)
	slow := newRollingWindow(smaSlowWindow)

	for i, c := range closes {
		fast.Push(c)
		slow.Push(c)

		res.SMAFast[i] = math.NaN()
		res.SMASlow[i] = math.NaN()
		if fast.Full() {
			res.SMAFast[i] = fast.Mean()
		}
		if slow.Full() {
			res.SMASlow[i] = slow.Mean()
		}

		if !fast.Full() || !slow.Full() {
			continue
		}
		switch {
		case res.SMAFast[i] > res.SMASlow[i]:
			res.Signal[i] = 1
		case mode == domain.LongShort:
			res.Signal[i] = -1
		}
	}

	res.finish(initialCapital)
	return res
}
