// Package store caches fetched price bars on local disk so repeated
// backtests over the same symbol and range don't hit the market-data
// provider again. Two backends are available: Parquet files per symbol and
// a single SQLite database.
package store

import (
	"context"
	"time"

	"tradelab/internal/domain"
)

// BarStore persists and retrieves close-price bars per symbol and
// timeframe.
type BarStore interface {
	// ReadBars returns the cached bars for symbol/timeframe with dates in
	// [start, end], ascending. A symbol with no cached bars yields an empty
	// slice, not an error.
	ReadBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.PriceBar, error)

	// WriteBars merges bars into the cache for symbol/timeframe,
	// deduplicating by date with incoming bars winning.
	WriteBars(ctx context.Context, symbol string, timeframe domain.Timeframe, bars []domain.PriceBar) error

	// Close releases any underlying resources.
	Close() error
}
