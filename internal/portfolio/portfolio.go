// Package portfolio combines per-ticker strategy outputs into a single
// weighted portfolio return series, with optional momentum ranking of the
// constituents, plus an equal-weight basket benchmark.
package portfolio

import (
	"errors"
	"math"
	"sort"
	"time"

	"tradelab/internal/domain"
	"tradelab/internal/strategy"
)

// ErrNoBars is returned when no ticker in the universe contributed a single
// dated bar.
var ErrNoBars = errors.New("portfolio: no bars for any ticker")

// momentumLookback is the rolling window, in bars, of the momentum score
// used to rank active tickers.
const momentumLookback = 26

// momentumMinPeriods is the minimum history before a momentum score is
// defined; younger tickers rank below every scored one.
const momentumMinPeriods = 4

// Config controls constituent selection.
type Config struct {
	TopN       int
	UseRanking bool
}

// TickerSeries is one constituent's dated return and position series, as
// produced by a per-ticker strategy run.
type TickerSeries struct {
	Symbol   string
	Dates    []time.Time
	Ret      []float64
	Position []int
}

// FromSMAResult builds a TickerSeries from an SMA crossover run.
func FromSMAResult(symbol string, r *strategy.SMAResult) TickerSeries {
	return TickerSeries{
		Symbol:   symbol,
		Dates:    r.Dates,
		Ret:      r.Ret,
		Position: r.Position,
	}
}

// Result is the aggregated output: the blended portfolio curve, the
// unweighted basket benchmark curve, and the final-date holdings snapshot.
type Result struct {
	Portfolio strategy.Curve
	Basket    strategy.Curve
	Holdings  []domain.Holding
}

// Aggregate blends the tickers' return series into a single portfolio
// return series and compounds it (and the basket benchmark) into equity
// curves seeded at initialCapital.
//
// All tickers' dates are unioned into one ascending axis; each ticker's
// return and position are reindexed onto it with zero fill. Per date, a
// ticker is active when its position is positive. Without ranking the
// selected set is the active set; with ranking the active tickers are
// ordered by 26-bar rolling momentum (product of 1+r minus 1, undefined
// until 4 bars of history) and the top Config.TopN are selected. Selected
// tickers are weighted equally; the portfolio return for the date is the
// weighted sum of their returns. The basket return is the plain mean of
// all tickers' returns, selected or not.
func Aggregate(tickers []TickerSeries, cfg Config, initialCapital float64) (*Result, error) {
	axis := unionDates(tickers)
	if len(axis) == 0 {
		return nil, ErrNoBars
	}

	n := len(axis)
	k := len(tickers)

	// Reindex every ticker onto the union axis, zero-filling gaps.
	rets := make([][]float64, k)
	positions := make([][]int, k)
	for j, ts := range tickers {
		rets[j] = make([]float64, n)
		positions[j] = make([]int, n)
		byDate := make(map[int64]int, len(ts.Dates))
		for i, d := range ts.Dates {
			byDate[dayKey(d)] = i
		}
		for i, d := range axis {
			if src, ok := byDate[dayKey(d)]; ok {
				rets[j][i] = ts.Ret[src]
				positions[j][i] = ts.Position[src]
			}
		}
	}

	momentum := make([]*momentumWindow, k)
	for j := range momentum {
		momentum[j] = newMomentumWindow(momentumLookback)
	}

	portfolioRet := make([]float64, n)
	basketRet := make([]float64, n)
	weights := make([]float64, k)
	active := make([]bool, k)

	for i := 0; i < n; i++ {
		var basketSum float64
		for j := 0; j < k; j++ {
			momentum[j].Push(rets[j][i])
			basketSum += rets[j][i]
			active[j] = positions[j][i] > 0
			weights[j] = 0
		}
		basketRet[i] = basketSum / float64(k)

		selected := selectTickers(active, momentum, cfg)
		if len(selected) > 0 {
			w := 1 / float64(len(selected))
			var sum float64
			for _, j := range selected {
				weights[j] = w
				sum += w * rets[j][i]
			}
			portfolioRet[i] = sum
		}
	}

	holdings := make([]domain.Holding, k)
	for j, ts := range tickers {
		holdings[j] = domain.Holding{
			Symbol:   ts.Symbol,
			Weight:   weights[j],
			InMarket: active[j],
		}
	}

	return &Result{
		Portfolio: strategy.Curve{
			Dates:  axis,
			Ret:    portfolioRet,
			Equity: strategy.CompoundEquity(portfolioRet, initialCapital),
		},
		Basket: strategy.Curve{
			Dates:  axis,
			Ret:    basketRet,
			Equity: strategy.CompoundEquity(basketRet, initialCapital),
		},
		Holdings: holdings,
	}, nil
}

// selectTickers returns the indices of the tickers holding weight on this
// date. With ranking enabled the active set is ordered by momentum
// descending (unscored tickers last, ties broken by index for
// determinism) and truncated to TopN.
func selectTickers(active []bool, momentum []*momentumWindow, cfg Config) []int {
	var selected []int
	for j, a := range active {
		if a {
			selected = append(selected, j)
		}
	}
	if !cfg.UseRanking || len(selected) == 0 {
		return selected
	}

	score := func(j int) float64 {
		if s, ok := momentum[j].Score(); ok {
			return s
		}
		return math.Inf(-1)
	}
	sort.SliceStable(selected, func(a, b int) bool {
		return score(selected[a]) > score(selected[b])
	})

	topN := cfg.TopN
	if topN > len(active) {
		topN = len(active)
	}
	if topN < len(selected) {
		selected = selected[:topN]
	}
	return selected
}

// unionDates merges all tickers' dates into one ascending, deduplicated
// axis.
func unionDates(tickers []TickerSeries) []time.Time {
	seen := make(map[int64]time.Time)
	for _, ts := range tickers {
		for _, d := range ts.Dates {
			seen[dayKey(d)] = d
		}
	}
	axis := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		axis = append(axis, d)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}

func dayKey(t time.Time) int64 {
	return t.UTC().Truncate(24 * time.Hour).Unix()
}

// momentumWindow maintains a rolling compounding product over the last
// size returns. The product is updated incrementally; when an evicted
// factor is too close to zero to divide back out, the product is recomputed
// from the buffer.
type momentumWindow struct {
	size    int
	buf     []float64 // stored as 1+r factors
	head    int
	count   int
	product float64
	history int // total pushes, for the minimum-periods rule
}

func newMomentumWindow(size int) *momentumWindow {
	return &momentumWindow{
		size:    size,
		buf:     make([]float64, size),
		product: 1,
	}
}

// Push adds a return to the window.
func (w *momentumWindow) Push(r float64) {
	factor := 1 + r
	if w.count == w.size {
		old := w.buf[w.head]
		if math.Abs(old) > 1e-12 {
			w.product /= old
		} else {
			w.recompute(w.head)
		}
	} else {
		w.count++
	}
	w.buf[w.head] = factor
	w.product *= factor
	w.head = (w.head + 1) % w.size
	w.history++
}

// recompute rebuilds the product from the buffer, skipping the slot about
// to be overwritten.
func (w *momentumWindow) recompute(skip int) {
	w.product = 1
	for i := 0; i < w.count; i++ {
		idx := (w.head + w.size - w.count + i) % w.size
		if idx == skip {
			continue
		}
		w.product *= w.buf[idx]
	}
}

// Score returns the momentum score Π(1+r)-1 over the window, and whether
// enough history exists for it to be defined.
func (w *momentumWindow) Score() (float64, bool) {
	if w.history < momentumMinPeriods {
		return 0, false
	}
	return w.product - 1, true
}
