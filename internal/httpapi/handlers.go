package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tradelab/internal/domain"
	"tradelab/internal/marketdata"
	"tradelab/internal/metrics"
	"tradelab/internal/portfolio"
	"tradelab/internal/strategy"
)

const (
	defaultStartDate      = "2005-01-01"
	defaultInitialCapital = 10_000.0
	dateLayout            = "2006-01-02"
)

// parseDateRange applies the request defaults (start 2005-01-01, end today)
// and rejects an empty or inverted range.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" {
		startStr = defaultStartDate
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q", startStr)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		end, err = time.Parse(dateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q", endStr)
		}
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start_date must be before end_date")
	}
	return start, end, nil
}

// parseCapital applies the default initial capital and rejects negative
// values.
func parseCapital(v float64) (float64, error) {
	if v == 0 {
		return defaultInitialCapital, nil
	}
	if v < 0 {
		return 0, errors.New("initial_capital must be positive")
	}
	return v, nil
}

func periodsPerYear(timeframe domain.Timeframe) int {
	if timeframe == domain.TimeframeDaily {
		return metrics.TradingDaysPerYear
	}
	return metrics.WeeksPerYear
}

// seriesResult windows a curve to the horizon, rebases it to the initial
// capital, and pairs the result with its summary metrics.
func seriesResult(symbol string, c strategy.Curve, horizon domain.Horizon, capital float64, ppy int) SeriesResult {
	wc := strategy.ApplyHorizon(c, horizon, capital)
	points := make([]EquityPoint, len(wc.Dates))
	for i := range wc.Dates {
		points[i] = EquityPoint{Date: wc.Dates[i].Format(dateLayout), Equity: wc.Equity[i]}
	}
	return SeriesResult{
		Symbol:      symbol,
		EquityCurve: points,
		Metrics:     metrics.Compute(wc.Ret, ppy),
	}
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	capital, err := parseCapital(req.InitialCapital)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := domain.ParsePositionMode(req.PositionMode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := domain.ParseHorizon(req.Horizon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeframe, err := domain.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prices, err := s.data.GetBars(r.Context(), ticker, timeframe, start, end)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}

	res := strategy.RunSMACrossover(prices, capital, mode)
	ppy := periodsPerYear(timeframe)

	resp := BacktestResponse{
		Strategy:   seriesResult(ticker, res.StrategyCurve(), horizon, capital, ppy),
		BuyAndHold: seriesResult(ticker, res.BuyHoldCurve(), horizon, capital, ppy),
	}

	// Benchmark buy-and-hold curves, fetched concurrently.
	benchmarks := make([]SeriesResult, len(s.benchmarks))
	g, gctx := errgroup.WithContext(r.Context())
	for i, sym := range s.benchmarks {
		g.Go(func() error {
			bars, err := s.data.GetBars(gctx, sym, timeframe, start, end)
			if err != nil {
				return err
			}
			benchmarks[i] = seriesResult(sym, strategy.BuyAndHold(bars, capital), horizon, capital, ppy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeFetchError(w, err)
		return
	}
	resp.Benchmarks = benchmarks

	writeJSON(w, resp)
}

func (s *Server) handleMeanReversion(w http.ResponseWriter, r *http.Request) {
	var req MeanReversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	capital, err := parseCapital(req.InitialCapital)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := domain.ParseHorizon(req.Horizon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeframe, err := domain.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := strategy.DefaultMeanReversionParams()
	if req.Lookback != 0 {
		if req.Lookback < 2 {
			writeError(w, http.StatusBadRequest, "lookback must be at least 2")
			return
		}
		params.Lookback = req.Lookback
	}
	if req.EntryZ != nil {
		if *req.EntryZ <= 0 {
			writeError(w, http.StatusBadRequest, "entry_z must be positive")
			return
		}
		params.EntryZ = *req.EntryZ
	}
	if req.ExitZ != nil {
		if *req.ExitZ < 0 {
			writeError(w, http.StatusBadRequest, "exit_z must not be negative")
			return
		}
		params.ExitZ = *req.ExitZ
	}
	if req.StopLossPct != nil {
		if *req.StopLossPct <= 0 {
			writeError(w, http.StatusBadRequest, "stop_loss_pct must be positive")
			return
		}
		params.StopLossPct = *req.StopLossPct
	}
	if req.MaxHoldingBars != nil {
		if *req.MaxHoldingBars < 1 {
			writeError(w, http.StatusBadRequest, "max_holding_bars must be at least 1")
			return
		}
		params.MaxHoldingBars = *req.MaxHoldingBars
	}
	if req.AllowShort != nil {
		params.AllowShort = *req.AllowShort
	}

	prices, err := s.data.GetBars(r.Context(), ticker, timeframe, start, end)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}

	res := strategy.RunMeanReversionZScore(prices, capital, params)
	ppy := periodsPerYear(timeframe)

	writeJSON(w, BacktestResponse{
		Strategy:   seriesResult(ticker, res.StrategyCurve(), horizon, capital, ppy),
		BuyAndHold: seriesResult(ticker, res.BuyHoldCurve(), horizon, capital, ppy),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var tickers []string
	seen := make(map[string]bool)
	for _, t := range req.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	if len(tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}
	if req.UseRanking && req.TopN < 1 {
		writeError(w, http.StatusBadRequest, "top_n must be at least 1")
		return
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	capital, err := parseCapital(req.InitialCapital)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := domain.ParseHorizon(req.Horizon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Per-ticker runs at unit capital, long-only, weekly bars. Tickers with
	// no data in range are dropped from the universe; provider failures
	// abort the request.
	series := make([]portfolio.TickerSeries, len(tickers))
	fetched := make([]bool, len(tickers))
	g, gctx := errgroup.WithContext(r.Context())
	for i, sym := range tickers {
		g.Go(func() error {
			bars, err := s.data.GetBars(gctx, sym, domain.TimeframeWeekly, start, end)
			if errors.Is(err, marketdata.ErrNoData) {
				s.log.Warn("skipping ticker with no data", "symbol", sym)
				return nil
			}
			if err != nil {
				return err
			}
			series[i] = portfolio.FromSMAResult(sym, strategy.RunSMACrossover(bars, 1, domain.LongOnly))
			fetched[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.writeFetchError(w, err)
		return
	}

	var kept []portfolio.TickerSeries
	for i := range series {
		if fetched[i] {
			kept = append(kept, series[i])
		}
	}

	agg, err := portfolio.Aggregate(kept, portfolio.Config{TopN: req.TopN, UseRanking: req.UseRanking}, capital)
	if err != nil {
		if errors.Is(err, portfolio.ErrNoBars) {
			writeError(w, http.StatusNotFound, "no bar data for any requested ticker")
			return
		}
		s.log.Error("portfolio aggregation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, PortfolioResponse{
		Portfolio: seriesResult("PORTFOLIO", agg.Portfolio, horizon, capital, metrics.WeeksPerYear),
		Basket:    seriesResult("BASKET", agg.Basket, horizon, capital, metrics.WeeksPerYear),
		Holdings:  agg.Holdings,
	})
}
