// Command tradelab runs one-off backtests from the terminal using the same
// engines and data layer as the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"tradelab/internal/config"
	"tradelab/internal/domain"
	"tradelab/internal/marketdata"
	"tradelab/internal/metrics"
	"tradelab/internal/strategy"
	"tradelab/internal/util"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tradelab <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  sma        Run an SMA crossover backtest\n")
		fmt.Fprintf(os.Stderr, "  meanrev    Run a mean-reversion z-score backtest\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("tradelab %s\n", version)

	case "sma":
		if err := runSMA(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "sma: %v\n", err)
			os.Exit(1)
		}

	case "meanrev":
		if err := runMeanRev(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "meanrev: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

// newDataService builds a marketdata service from the config file and
// environment, logging quietly to stderr.
func newDataService() (*marketdata.Service, error) {
	cfgPath := "config/tradelab.yaml"
	if p := os.Getenv("TRADELAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLogger(os.Stderr, "warn", "text")
	slog.SetDefault(logger)

	return marketdata.NewService(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Alpaca.Feed,
		nil,
		cfg.Fetch.MaxAttempts,
		time.Duration(cfg.Fetch.RetryDelayMS)*time.Millisecond,
		cfg.Fetch.RateLimitPerMin,
		logger,
	), nil
}

func fetchBars(fs *flag.FlagSet, ticker, startStr, endStr, timeframeStr string) (domain.PriceSeries, domain.Timeframe, error) {
	if ticker == "" {
		fs.Usage()
		return nil, "", fmt.Errorf("-ticker is required")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid -start date %q", startStr)
	}
	end := time.Now().UTC()
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, "", fmt.Errorf("invalid -end date %q", endStr)
		}
	}
	if !start.Before(end) {
		return nil, "", fmt.Errorf("-start must be before -end")
	}
	timeframe, err := domain.ParseTimeframe(timeframeStr)
	if err != nil {
		return nil, "", err
	}

	data, err := newDataService()
	if err != nil {
		return nil, "", err
	}
	bars, err := data.GetBars(context.Background(), ticker, timeframe, start, end)
	if err != nil {
		return nil, "", err
	}
	return bars, timeframe, nil
}

func runSMA(args []string) error {
	fs := flag.NewFlagSet("sma", flag.ExitOnError)
	ticker := fs.String("ticker", "", "ticker symbol, e.g. AAPL")
	start := fs.String("start", "2005-01-01", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD), default today")
	capital := fs.Float64("capital", 10_000, "initial capital")
	mode := fs.String("mode", "long_only", "position mode: long_only or long_short")
	timeframe := fs.String("timeframe", "weekly", "bar timeframe: daily or weekly")
	fs.Parse(args)

	positionMode, err := domain.ParsePositionMode(*mode)
	if err != nil {
		return err
	}
	bars, tf, err := fetchBars(fs, *ticker, *start, *end, *timeframe)
	if err != nil {
		return err
	}

	res := strategy.RunSMACrossover(bars, *capital, positionMode)
	printSummary(os.Stdout, *ticker, tf, &res.Series)
	return nil
}

func runMeanRev(args []string) error {
	fs := flag.NewFlagSet("meanrev", flag.ExitOnError)
	ticker := fs.String("ticker", "", "ticker symbol, e.g. AAPL")
	start := fs.String("start", "2005-01-01", "start date (YYYY-MM-DD)")
	end := fs.String("end", "", "end date (YYYY-MM-DD), default today")
	capital := fs.Float64("capital", 10_000, "initial capital")
	timeframe := fs.String("timeframe", "weekly", "bar timeframe: daily or weekly")
	lookback := fs.Int("lookback", 20, "z-score lookback window in bars")
	entryZ := fs.Float64("entry-z", 2.0, "entry z-score threshold")
	exitZ := fs.Float64("exit-z", 0.5, "exit z-score threshold")
	stopLoss := fs.Float64("stop-loss", 0, "stop loss fraction, 0 disables")
	maxHold := fs.Int("max-hold", 0, "max holding bars, 0 disables")
	long := fs.Bool("long-only", false, "disable short entries")
	fs.Parse(args)

	if *lookback < 2 {
		return fmt.Errorf("-lookback must be at least 2")
	}
	if *entryZ <= 0 {
		return fmt.Errorf("-entry-z must be positive")
	}
	if *exitZ < 0 {
		return fmt.Errorf("-exit-z must not be negative")
	}

	params := strategy.MeanReversionParams{
		Lookback:       *lookback,
		EntryZ:         *entryZ,
		ExitZ:          *exitZ,
		StopLossPct:    *stopLoss,
		MaxHoldingBars: *maxHold,
		AllowShort:     !*long,
	}
	bars, tf, err := fetchBars(fs, *ticker, *start, *end, *timeframe)
	if err != nil {
		return err
	}

	res := strategy.RunMeanReversionZScore(bars, *capital, params)
	printSummary(os.Stdout, *ticker, tf, &res.Series)
	return nil
}

func printSummary(w io.Writer, ticker string, timeframe domain.Timeframe, s *strategy.Series) {
	ppy := metrics.WeeksPerYear
	if timeframe == domain.TimeframeDaily {
		ppy = metrics.TradingDaysPerYear
	}
	stratMetrics := metrics.Compute(s.StrategyRet, ppy)
	holdMetrics := metrics.Compute(s.Ret, ppy)

	fmt.Fprintf(w, "%s  %s bars: %d  (%s .. %s)\n", ticker, timeframe, len(s.Dates),
		s.Dates[0].Format("2006-01-02"), s.Dates[len(s.Dates)-1].Format("2006-01-02"))
	fmt.Fprintf(w, "%-14s %14s %14s\n", "", "strategy", "buy & hold")
	fmt.Fprintf(w, "%-14s %14.2f %14.2f\n", "final equity", s.StrategyEquity[len(s.StrategyEquity)-1], s.BuyHoldEquity[len(s.BuyHoldEquity)-1])
	fmt.Fprintf(w, "%-14s %13.2f%% %13.2f%%\n", "total return", stratMetrics.CumulativeReturn*100, holdMetrics.CumulativeReturn*100)
	fmt.Fprintf(w, "%-14s %13.2f%% %13.2f%%\n", "cagr", stratMetrics.CAGR*100, holdMetrics.CAGR*100)
	fmt.Fprintf(w, "%-14s %13.2f%% %13.2f%%\n", "max drawdown", stratMetrics.MaxDrawdown*100, holdMetrics.MaxDrawdown*100)
	fmt.Fprintf(w, "%-14s %13.2f%% %13.2f%%\n", "volatility", stratMetrics.Volatility*100, holdMetrics.Volatility*100)
	fmt.Fprintf(w, "%-14s %14.2f %14.2f\n", "sharpe", stratMetrics.SharpeRatio, holdMetrics.SharpeRatio)
}
