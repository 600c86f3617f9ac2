package strategy

import (
	"sort"
	"time"

	"tradelab/internal/domain"
)

// ApplyHorizon truncates a curve to the trailing horizon window and rebases
// it to initialCapital. The cutoff is last date minus the horizon's
// calendar months; bars dated at or after the cutoff are kept. If the
// window would be empty the full curve is kept instead. The first kept
// bar's return is reset to 0 (the window's start has no prior bar) and the
// equity column is rescaled so its first value equals initialCapital. When
// the first equity value is not positive the whole column degenerates to a
// constant initialCapital. The source curve is never modified.
func ApplyHorizon(c Curve, horizon domain.Horizon, initialCapital float64) Curve {
	n := len(c.Dates)
	if n == 0 {
		return c
	}

	cutoff := c.Dates[n-1].AddDate(0, -horizon.Months(), 0)
	start := sort.Search(n, func(i int) bool {
		return !c.Dates[i].Before(cutoff)
	})
	if start >= n {
		start = 0 // never return an empty window from a non-empty curve
	}

	out := Curve{
		Dates:  append([]time.Time(nil), c.Dates[start:]...),
		Ret:    append([]float64(nil), c.Ret[start:]...),
		Equity: append([]float64(nil), c.Equity[start:]...),
	}
	out.Ret[0] = 0

	first := out.Equity[0]
	if first <= 0 {
		for i := range out.Equity {
			out.Equity[i] = initialCapital
		}
		return out
	}
	for i := range out.Equity {
		out.Equity[i] = out.Equity[i] / first * initialCapital
	}
	return out
}
