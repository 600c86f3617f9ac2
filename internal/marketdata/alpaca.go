// Package marketdata fetches historical close-price bars from the Alpaca
// market-data API and normalizes them into domain price series. It
// distinguishes "symbol has no bars" from "provider failed" so the HTTP
// layer can answer 404 vs 502, retries transient failures with backoff,
// paces requests with a token bucket, and optionally caches fetched bars in
// a local store.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradelab/internal/domain"
	"tradelab/internal/store"
	"tradelab/internal/util"
)

// fetchLimit caps the total bars requested per fetch; the SDK pages
// internally up to this many.
const fetchLimit = 10_000

// barGetter is the slice of the Alpaca client the service uses. Tests
// substitute a fake.
type barGetter interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Compile-time check that the real client satisfies the interface.
var _ barGetter = (*marketdata.Client)(nil)

// Service fetches bars from Alpaca with retry, rate limiting, and an
// optional local cache.
type Service struct {
	client      barGetter
	feed        string
	cache       store.BarStore // nil disables caching
	limiter     *util.RateLimiter
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewService creates a Service talking to the Alpaca data API with the
// given credentials. cache may be nil. rateLimitPerMin <= 0 disables
// pacing.
func NewService(apiKey, apiSecret, dataURL, feed string, cache store.BarStore, maxAttempts int, retryDelay time.Duration, rateLimitPerMin int, log *slog.Logger) *Service {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	var limiter *util.RateLimiter
	if rateLimitPerMin > 0 {
		limiter = util.NewRateLimiter(rateLimitPerMin)
	}

	return &Service{
		client:      marketdata.NewClient(opts),
		feed:        feed,
		cache:       cache,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		log:         log.With("service", "marketdata"),
	}
}

// GetBars returns the symbol's close-price series for [start, end] at the
// given timeframe, ascending by date and deduplicated by calendar date.
// It returns an error wrapping ErrNoData when the range holds no bars, and
// one wrapping ErrUpstream when the provider could not be reached after
// retries.
func (s *Service) GetBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) (domain.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if s.cache != nil {
		cached, err := s.cache.ReadBars(ctx, symbol, timeframe, start, end)
		if err != nil {
			s.log.Warn("cache read failed", "symbol", symbol, "err", err)
		} else if cacheCovers(cached, start, end, timeframe) {
			s.log.Debug("cache hit", "symbol", symbol, "timeframe", timeframe, "bars", len(cached))
			return domain.NormalizeSeries(cached), nil
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	tf := marketdata.OneWeek
	if timeframe == domain.TimeframeDaily {
		tf = marketdata.OneDay
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		var ferr error
		raw, ferr = s.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  tf,
			Adjustment: marketdata.All,
			Start:      start,
			End:        end,
			TotalLimit: fetchLimit,
			Feed:       marketdata.Feed(s.feed),
			Sort:       marketdata.SortAsc,
		})
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, symbol, err)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no %s bars for %q in range", ErrNoData, timeframe, symbol)
	}

	bars := make([]domain.PriceBar, len(raw))
	for i, b := range raw {
		bars[i] = domain.PriceBar{Date: b.Timestamp, Close: b.Close}
	}
	series := domain.NormalizeSeries(bars)

	if s.cache != nil {
		if err := s.cache.WriteBars(ctx, symbol, timeframe, series); err != nil {
			s.log.Warn("cache write failed", "symbol", symbol, "err", err)
		}
	}

	s.log.Debug("fetched bars", "symbol", symbol, "timeframe", timeframe, "bars", len(series))
	return series, nil
}

// cacheCovers reports whether cached bars plausibly span the requested
// range: non-empty, first bar within one period's slack of the range start,
// last bar within slack of the range end. The slack absorbs weekends,
// holidays, and bar alignment.
func cacheCovers(bars []domain.PriceBar, start, end time.Time, timeframe domain.Timeframe) bool {
	if len(bars) == 0 {
		return false
	}
	slack := 7 * 24 * time.Hour
	if timeframe == domain.TimeframeWeekly {
		slack = 14 * 24 * time.Hour
	}
	return !bars[0].Date.After(start.Add(slack)) &&
		!bars[len(bars)-1].Date.Before(end.Add(-slack))
}
