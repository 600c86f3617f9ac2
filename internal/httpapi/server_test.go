package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradelab/internal/domain"
	"tradelab/internal/marketdata"
	"tradelab/internal/util"
)

// stubSource serves canned series per symbol. Unknown symbols report no
// data, mirroring the marketdata error taxonomy.
type stubSource struct {
	series map[string]domain.PriceSeries
	errs   map[string]error
}

func (s *stubSource) GetBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) (domain.PriceSeries, error) {
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	if ps, ok := s.series[symbol]; ok {
		return ps, nil
	}
	return nil, fmt.Errorf("%w: no %s bars for %q in range", marketdata.ErrNoData, timeframe, symbol)
}

// trendSeries builds n weekly bars from 2020-01-03 rising by step per bar.
func trendSeries(base, step float64, n int) domain.PriceSeries {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	ps := make(domain.PriceSeries, n)
	for i := range ps {
		ps[i] = domain.PriceBar{Date: start.AddDate(0, 0, 7*i), Close: base + step*float64(i)}
	}
	return ps
}

func newTestServer(src BarSource, benchmarks []string) http.Handler {
	srv := NewServer(src, benchmarks, nil, util.NewLogger(io.Discard, "error", "text"))
	return srv.Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(&stubSource{}, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf(`status field = %q, want "ok"`, body["status"])
	}
}

func TestBacktestValidation(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{"AAPL": trendSeries(100, 1, 40)},
	}, nil)

	cases := []struct {
		name string
		body BacktestRequest
	}{
		{"missing ticker", BacktestRequest{StartDate: "2020-01-01", EndDate: "2021-01-01"}},
		{"start not before end", BacktestRequest{Ticker: "AAPL", StartDate: "2021-01-01", EndDate: "2020-01-01"}},
		{"start equals end", BacktestRequest{Ticker: "AAPL", StartDate: "2020-06-01", EndDate: "2020-06-01"}},
		{"bad start date", BacktestRequest{Ticker: "AAPL", StartDate: "June 2020", EndDate: "2021-01-01"}},
		{"bad horizon", BacktestRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", Horizon: "3W"}},
		{"bad position mode", BacktestRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", PositionMode: "hedged"}},
		{"bad timeframe", BacktestRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", Timeframe: "monthly"}},
		{"negative capital", BacktestRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", InitialCapital: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/backtest", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestBacktestNoDataIs404(t *testing.T) {
	h := newTestServer(&stubSource{}, nil)
	rec := postJSON(t, h, "/api/backtest", BacktestRequest{
		Ticker: "ZZZZ", StartDate: "2020-01-01", EndDate: "2021-01-01",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBacktestUpstreamFailureIs502(t *testing.T) {
	h := newTestServer(&stubSource{
		errs: map[string]error{"AAPL": fmt.Errorf("%w: AAPL: timeout", marketdata.ErrUpstream)},
	}, nil)
	rec := postJSON(t, h, "/api/backtest", BacktestRequest{
		Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestBacktestResponseShape(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{
			"AAPL": trendSeries(100, 1, 40),
			"SPY":  trendSeries(300, 0.5, 40),
		},
	}, []string{"SPY"})

	rec := postJSON(t, h, "/api/backtest", BacktestRequest{
		Ticker: "aapl", StartDate: "2020-01-01", EndDate: "2021-01-01",
		InitialCapital: 10_000, Horizon: "1Y",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var resp BacktestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Strategy.Symbol != "AAPL" {
		t.Errorf("strategy symbol = %q, want AAPL (uppercased)", resp.Strategy.Symbol)
	}
	if len(resp.Strategy.EquityCurve) == 0 || len(resp.BuyAndHold.EquityCurve) == 0 {
		t.Fatal("equity curves must not be empty")
	}
	if got := resp.Strategy.EquityCurve[0].Equity; got != 10_000 {
		t.Errorf("first strategy equity = %v, want exactly the initial capital", got)
	}
	if got := resp.BuyAndHold.EquityCurve[0].Equity; got != 10_000 {
		t.Errorf("first buy-hold equity = %v, want exactly the initial capital", got)
	}
	if len(resp.Benchmarks) != 1 || resp.Benchmarks[0].Symbol != "SPY" {
		t.Errorf("benchmarks = %+v, want one SPY entry", resp.Benchmarks)
	}
}

func TestBacktestBenchmarkFailurePropagates(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{"AAPL": trendSeries(100, 1, 40)},
		errs:   map[string]error{"SPY": fmt.Errorf("%w: SPY: timeout", marketdata.ErrUpstream)},
	}, []string{"SPY"})

	rec := postJSON(t, h, "/api/backtest", BacktestRequest{
		Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 when a benchmark fetch fails", rec.Code)
	}
}

func TestMeanReversionValidation(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{"AAPL": trendSeries(100, 1, 40)},
	}, nil)

	neg := -1.0
	cases := []struct {
		name string
		body MeanReversionRequest
	}{
		{"lookback too small", MeanReversionRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", Lookback: 1}},
		{"entry_z not positive", MeanReversionRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", EntryZ: &neg}},
		{"exit_z negative", MeanReversionRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", ExitZ: &neg}},
		{"stop loss not positive", MeanReversionRequest{Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01", StopLossPct: &neg}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/backtest/mean-reversion", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestMeanReversionResponseHasNoBenchmarks(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{
			"AAPL": trendSeries(100, 1, 40),
			"SPY":  trendSeries(300, 0.5, 40),
		},
	}, []string{"SPY"})

	rec := postJSON(t, h, "/api/backtest/mean-reversion", MeanReversionRequest{
		Ticker: "AAPL", StartDate: "2020-01-01", EndDate: "2021-01-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var resp BacktestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Benchmarks) != 0 {
		t.Errorf("benchmarks = %+v, want none on the mean-reversion endpoint", resp.Benchmarks)
	}
	if got := resp.Strategy.EquityCurve[0].Equity; got != 10_000 {
		t.Errorf("first strategy equity = %v, want the default capital 10000", got)
	}
}

func TestPortfolioValidation(t *testing.T) {
	h := newTestServer(&stubSource{}, nil)

	cases := []struct {
		name string
		body PortfolioRequest
	}{
		{"no tickers", PortfolioRequest{StartDate: "2020-01-01", EndDate: "2021-01-01"}},
		{"blank tickers only", PortfolioRequest{Tickers: []string{" ", ""}, StartDate: "2020-01-01", EndDate: "2021-01-01"}},
		{"ranking without top_n", PortfolioRequest{Tickers: []string{"AAPL"}, UseRanking: true, StartDate: "2020-01-01", EndDate: "2021-01-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/portfolio", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPortfolioAllTickersNoDataIs404(t *testing.T) {
	h := newTestServer(&stubSource{}, nil)
	rec := postJSON(t, h, "/api/portfolio", PortfolioRequest{
		Tickers: []string{"ZZZZ", "YYYY"}, StartDate: "2020-01-01", EndDate: "2021-01-01",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPortfolioSkipsNoDataTickers(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{
			"AAPL": trendSeries(100, 1, 40),
			"MSFT": trendSeries(200, 2, 40),
		},
	}, nil)

	rec := postJSON(t, h, "/api/portfolio", PortfolioRequest{
		Tickers:        []string{"AAPL", "ZZZZ", "MSFT", "aapl"}, // dedupe + skip
		StartDate:      "2020-01-01",
		EndDate:        "2021-01-01",
		InitialCapital: 10_000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var resp PortfolioResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Holdings) != 2 {
		t.Fatalf("holdings = %d, want 2 (no-data ticker dropped, duplicate merged)", len(resp.Holdings))
	}
	if resp.Portfolio.Symbol != "PORTFOLIO" || resp.Basket.Symbol != "BASKET" {
		t.Errorf("symbols = %q/%q, want PORTFOLIO/BASKET", resp.Portfolio.Symbol, resp.Basket.Symbol)
	}
	if got := resp.Portfolio.EquityCurve[0].Equity; got != 10_000 {
		t.Errorf("first portfolio equity = %v, want the initial capital", got)
	}
}

func TestPortfolioUpstreamFailureAborts(t *testing.T) {
	h := newTestServer(&stubSource{
		series: map[string]domain.PriceSeries{"AAPL": trendSeries(100, 1, 40)},
		errs:   map[string]error{"MSFT": fmt.Errorf("%w: MSFT: timeout", marketdata.ErrUpstream)},
	}, nil)

	rec := postJSON(t, h, "/api/portfolio", PortfolioRequest{
		Tickers: []string{"AAPL", "MSFT"}, StartDate: "2020-01-01", EndDate: "2021-01-01",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 when any fetch hits a provider failure", rec.Code)
	}
}

func TestCORSPreflightAndOrigins(t *testing.T) {
	h := newTestServer(&stubSource{}, nil)

	req := httptest.NewRequest("OPTIONS", "/api/backtest", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want the localhost origin echoed", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for an unlisted origin, want empty", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://app.example.com"}
	cases := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"https://APP.example.com", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8080", true},
		{"https://evil.example.com", false},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.origin, allowed); got != tc.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}
