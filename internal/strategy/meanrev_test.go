package strategy

import (
	"math"
	"testing"
)

// oscillating returns n closes alternating center±amp, so the rolling
// standard deviation stays positive.
func oscillating(center, amp float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = center + amp
		} else {
			closes[i] = center - amp
		}
	}
	return closes
}

func TestMeanReversionLongEntryOnCrash(t *testing.T) {
	// Stable oscillation around 100, then a crash: z-score far below the
	// entry threshold.
	closes := append(oscillating(100, 1, 25), 70)
	res := RunMeanReversionZScore(weeklySeries(closes), 10_000, DefaultMeanReversionParams())

	last := len(closes) - 1
	if res.ZScore[last] >= -2 {
		t.Fatalf("ZScore[%d] = %v, want far below -2", last, res.ZScore[last])
	}
	if res.Signal[last] != 1 {
		t.Errorf("Signal[%d] = %d, want 1 (long entry on deep negative z)", last, res.Signal[last])
	}
}

func TestMeanReversionAllowShort(t *testing.T) {
	// Oscillation, spike up (short entry), decay back, then another spike.
	closes := append(oscillating(100, 1, 25), 130, 131, 130, 129, 130, 131)

	params := DefaultMeanReversionParams()
	prices := weeklySeries(closes)

	withShort := RunMeanReversionZScore(prices, 10_000, params)

	params.AllowShort = false
	noShort := RunMeanReversionZScore(prices, 10_000, params)

	count := func(r *MeanReversionResult) int {
		n := 0
		for _, p := range r.Position {
			if p < 0 {
				n++
			}
		}
		return n
	}

	if got := count(noShort); got != 0 {
		t.Errorf("short-disabled run has %d negative-position bars, want 0", got)
	}
	if count(withShort) <= count(noShort) {
		t.Errorf("allow_short should add negative-position bars: with=%d without=%d",
			count(withShort), count(noShort))
	}
}

func TestMeanReversionMaxHoldingBars(t *testing.T) {
	closes := append(oscillating(100, 1, 25), 70, 70.5, 69.5, 70, 70.5, 69.5, 70, 70.5, 69.5, 70)

	params := DefaultMeanReversionParams()
	params.MaxHoldingBars = 3
	res := RunMeanReversionZScore(weeklySeries(closes), 10_000, params)

	run := 0
	for i, sig := range res.Signal {
		if sig != 0 {
			run++
		} else {
			run = 0
		}
		if run > 3 {
			t.Fatalf("contiguous non-flat signal run exceeds max_holding_bars at bar %d", i)
		}
	}
}

func TestMeanReversionStopLossNoSameBarReentry(t *testing.T) {
	// Crash triggers a long entry; a second, deeper crash trips the stop
	// while the z-score is still below the entry threshold. The stop bar
	// must record a flat signal, and the re-entry happens the next bar.
	closes := append(oscillating(100, 1, 25), 70, 35, 34)

	params := DefaultMeanReversionParams()
	params.StopLossPct = 0.2
	res := RunMeanReversionZScore(weeklySeries(closes), 10_000, params)

	entryBar := 25
	stopBar := 26

	if res.Signal[entryBar] != 1 {
		t.Fatalf("Signal[%d] = %d, want 1 (long entry)", entryBar, res.Signal[entryBar])
	}
	// 35/70 - 1 = -50% unrealized, well past the 20% stop.
	if res.Signal[stopBar] != 0 {
		t.Errorf("Signal[%d] = %d, want 0 on the stop-loss bar", stopBar, res.Signal[stopBar])
	}
	if res.ZScore[stopBar] >= -2 {
		t.Fatalf("ZScore[%d] = %v; test requires z below entry threshold on the stop bar", stopBar, res.ZScore[stopBar])
	}
	if res.Signal[stopBar+1] != 1 {
		t.Errorf("Signal[%d] = %d, want 1 (re-entry on the bar after the stop)", stopBar+1, res.Signal[stopBar+1])
	}
}

func TestMeanReversionExitOnReversion(t *testing.T) {
	// Crash to 70, then recovery toward the rolling mean lifts the z-score
	// above -exit_z and closes the long.
	closes := append(oscillating(100, 1, 25), 70, 85, 99, 100, 101, 100)
	res := RunMeanReversionZScore(weeklySeries(closes), 10_000, DefaultMeanReversionParams())

	if res.Signal[25] != 1 {
		t.Fatalf("Signal[25] = %d, want 1 (long entry)", res.Signal[25])
	}
	exited := false
	for i := 26; i < len(closes); i++ {
		if res.Signal[i] == 0 {
			exited = true
			break
		}
	}
	if !exited {
		t.Error("long position should exit once the z-score reverts toward the mean")
	}
}

func TestMeanReversionInsufficientHistoryFlat(t *testing.T) {
	res := RunMeanReversionZScore(weeklySeries(oscillating(100, 1, 10)), 2_500, DefaultMeanReversionParams())

	for i := range res.ZScore {
		if !math.IsNaN(res.ZScore[i]) {
			t.Errorf("ZScore[%d] = %v, want NaN with fewer than lookback bars", i, res.ZScore[i])
		}
		if res.Signal[i] != 0 {
			t.Errorf("Signal[%d] = %d, want 0", i, res.Signal[i])
		}
		if res.StrategyEquity[i] != 2_500 {
			t.Errorf("StrategyEquity[%d] = %v, want flat 2500", i, res.StrategyEquity[i])
		}
	}
}

func TestMeanReversionNonPositiveLookbackStaysFlat(t *testing.T) {
	// The boundaries reject lookbacks below 2, but the engine itself must
	// still be total: a degenerate window yields undefined z-scores and a
	// flat curve, never a crash.
	for _, lookback := range []int{0, -3, 1} {
		params := DefaultMeanReversionParams()
		params.Lookback = lookback
		res := RunMeanReversionZScore(weeklySeries(oscillating(100, 5, 30)), 1_000, params)

		for i := range res.Signal {
			if !math.IsNaN(res.ZScore[i]) {
				t.Errorf("lookback %d: ZScore[%d] = %v, want NaN", lookback, i, res.ZScore[i])
			}
			if res.Signal[i] != 0 {
				t.Errorf("lookback %d: Signal[%d] = %d, want 0", lookback, i, res.Signal[i])
			}
			if res.StrategyEquity[i] != 1_000 {
				t.Errorf("lookback %d: StrategyEquity[%d] = %v, want flat 1000", lookback, i, res.StrategyEquity[i])
			}
		}
	}
}

func TestMeanReversionZeroStdUndefined(t *testing.T) {
	// Constant closes: window fills but dispersion is zero, so the z-score
	// stays undefined and no trade ever triggers.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	res := RunMeanReversionZScore(weeklySeries(closes), 1_000, DefaultMeanReversionParams())

	for i := range closes {
		if !math.IsNaN(res.ZScore[i]) {
			t.Errorf("ZScore[%d] = %v, want NaN for zero dispersion", i, res.ZScore[i])
		}
		if res.Signal[i] != 0 {
			t.Errorf("Signal[%d] = %d, want 0", i, res.Signal[i])
		}
	}
}
