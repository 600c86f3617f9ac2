// Package domain defines the core value types shared across the backtesting
// service: price bars, timeframes, horizons, and result summaries. All types
// here are plain values derived per request; nothing in this package carries
// state between computations.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// PriceBar is a single sampled close price for a calendar date.
type PriceBar struct {
	Date  time.Time
	Close float64
}

// PriceSeries is an ordered sequence of price bars, ascending by date and
// deduplicated by calendar date.
type PriceSeries []PriceBar

// Closes returns the close column of the series.
func (ps PriceSeries) Closes() []float64 {
	closes := make([]float64, len(ps))
	for i, b := range ps {
		closes[i] = b.Close
	}
	return closes
}

// Dates returns the date column of the series.
func (ps PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(ps))
	for i, b := range ps {
		dates[i] = b.Date
	}
	return dates
}

// NormalizeSeries sorts bars ascending by date and drops duplicate calendar
// dates, keeping the first bar seen for each date. Dates are compared at
// day granularity in UTC.
func NormalizeSeries(bars []PriceBar) PriceSeries {
	byDate := make(map[string]PriceBar, len(bars))
	for _, b := range bars {
		day := b.Date.UTC().Truncate(24 * time.Hour)
		key := day.Format("2006-01-02")
		if _, ok := byDate[key]; ok {
			continue
		}
		byDate[key] = PriceBar{Date: day, Close: b.Close}
	}

	out := make(PriceSeries, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Timeframe selects the bar sampling period for a data fetch.
type Timeframe string

const (
	TimeframeDaily  Timeframe = "daily"
	TimeframeWeekly Timeframe = "weekly"
)

// ParseTimeframe validates a timeframe string. An empty string defaults to
// weekly, matching the service's primary bar period.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeDaily, TimeframeWeekly:
		return Timeframe(s), nil
	case "":
		return TimeframeWeekly, nil
	}
	return "", fmt.Errorf("invalid timeframe %q", s)
}

// PositionMode controls whether a strategy may hold short positions.
type PositionMode string

const (
	LongOnly  PositionMode = "long_only"
	LongShort PositionMode = "long_short"
)

// ParsePositionMode validates a position mode string. An empty string
// defaults to long-only.
func ParsePositionMode(s string) (PositionMode, error) {
	switch PositionMode(s) {
	case LongOnly, LongShort:
		return PositionMode(s), nil
	case "":
		return LongOnly, nil
	}
	return "", fmt.Errorf("invalid position_mode %q", s)
}

// Horizon is a trailing lookback window applied to an equity curve.
type Horizon string

const (
	Horizon1M  Horizon = "1M"
	Horizon6M  Horizon = "6M"
	Horizon1Y  Horizon = "1Y"
	Horizon5Y  Horizon = "5Y"
	Horizon10Y Horizon = "10Y"
)

// horizonMonths maps each horizon to its calendar-month span.
var horizonMonths = map[Horizon]int{
	Horizon1M:  1,
	Horizon6M:  6,
	Horizon1Y:  12,
	Horizon5Y:  60,
	Horizon10Y: 120,
}

// ParseHorizon validates a horizon string. An empty string defaults to 1Y.
func ParseHorizon(s string) (Horizon, error) {
	if s == "" {
		return Horizon1Y, nil
	}
	h := Horizon(s)
	if _, ok := horizonMonths[h]; !ok {
		return "", fmt.Errorf("invalid horizon %q", s)
	}
	return h, nil
}

// Months returns the horizon span in calendar months.
func (h Horizon) Months() int {
	return horizonMonths[h]
}

// MetricSummary is an immutable snapshot of risk/return statistics computed
// from one periodic return series.
type MetricSummary struct {
	CumulativeReturn float64 `json:"cumulative_return"`
	CAGR             float64 `json:"cagr"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
}

// Holding is a point-in-time snapshot of one portfolio constituent at the
// latest rebalance.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Weight   float64 `json:"weight"`
	InMarket bool    `json:"in_market"`
}
