package httpapi

import "tradelab/internal/domain"

// BacktestRequest is the payload for POST /api/backtest.
type BacktestRequest struct {
	Ticker         string  `json:"ticker"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	InitialCapital float64 `json:"initial_capital"`
	PositionMode   string  `json:"position_mode"`
	Horizon        string  `json:"horizon"`
	Timeframe      string  `json:"timeframe"`
}

// MeanReversionRequest is the payload for POST /api/backtest/mean-reversion.
type MeanReversionRequest struct {
	Ticker         string   `json:"ticker"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	InitialCapital float64  `json:"initial_capital"`
	Horizon        string   `json:"horizon"`
	Timeframe      string   `json:"timeframe"`
	Lookback       int      `json:"lookback"`
	EntryZ         *float64 `json:"entry_z"`
	ExitZ          *float64 `json:"exit_z"`
	StopLossPct    *float64 `json:"stop_loss_pct"`
	MaxHoldingBars *int     `json:"max_holding_bars"`
	AllowShort     *bool    `json:"allow_short"`
}

// PortfolioRequest is the payload for POST /api/portfolio.
type PortfolioRequest struct {
	Tickers        []string `json:"tickers"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	InitialCapital float64  `json:"initial_capital"`
	Horizon        string   `json:"horizon"`
	TopN           int      `json:"top_n"`
	UseRanking     bool     `json:"use_ranking"`
}

// EquityPoint is one dated value of an equity curve.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// SeriesResult is an equity curve plus its summary metrics.
type SeriesResult struct {
	Symbol      string               `json:"symbol"`
	EquityCurve []EquityPoint        `json:"equity_curve"`
	Metrics     domain.MetricSummary `json:"metrics"`
}

// BacktestResponse is the reply to the single-ticker backtest endpoints.
type BacktestResponse struct {
	Strategy   SeriesResult   `json:"strategy"`
	BuyAndHold SeriesResult   `json:"buy_and_hold"`
	Benchmarks []SeriesResult `json:"benchmarks,omitempty"`
}

// PortfolioResponse is the reply to POST /api/portfolio.
type PortfolioResponse struct {
	Portfolio SeriesResult     `json:"portfolio"`
	Basket    SeriesResult     `json:"basket"`
	Holdings  []domain.Holding `json:"holdings"`
}
