package strategy

import "math"

// rollingWindow is an incremental fixed-size window accumulator. It keeps a
// ring buffer plus running sum and sum of squares, so mean and population
// standard deviation are O(1) per bar regardless of window size.
type rollingWindow struct {
	size  int
	buf   []float64
	head  int
	count int
	sum   float64
	sumSq float64
}

func newRollingWindow(size int) *rollingWindow {
	if size < 1 {
		// A single-value window has zero dispersion, so downstream z-scores
		// stay undefined rather than indexing an empty buffer.
		size = 1
	}
	return &rollingWindow{
		size: size,
		buf:  make([]float64, size),
	}
}

// Push adds v to the window, evicting the oldest value once the window is
// full.
func (w *rollingWindow) Push(v float64) {
	if w.count == w.size {
		old := w.buf[w.head]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.sum += v
	w.sumSq += v * v
	w.head = (w.head + 1) % w.size
}

// Full reports whether the window holds size values. Mean and Std are
// undefined until then.
func (w *rollingWindow) Full() bool {
	return w.count == w.size
}

// Mean returns the arithmetic mean of the window contents.
func (w *rollingWindow) Mean() float64 {
	return w.sum / float64(w.count)
}

// Std returns the population standard deviation of the window contents.
func (w *rollingWindow) Std() float64 {
	mean := w.Mean()
	variance := w.sumSq/float64(w.count) - mean*mean
	if variance < 0 {
		variance = 0 // guard against float round-off
	}
	return math.Sqrt(variance)
}
