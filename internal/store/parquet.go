package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradelab/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore with one Parquet file per symbol and
// timeframe under the data directory.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at dataDir.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// BarRecord is the on-disk Parquet schema for a cached bar.
type BarRecord struct {
	Symbol string  `parquet:"symbol"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, midnight UTC
	Close  float64 `parquet:"close"`
}

// ReadBars reads cached bars for the symbol within [start, end].
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.PriceBar, error) {
	records, err := parquet.ReadFile[BarRecord](s.barPath(symbol, timeframe))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		// A damaged cache file is treated as a miss rather than a failure.
		return nil, nil
	}

	var bars []domain.PriceBar
	for _, r := range records {
		d := time.UnixMilli(r.Date).UTC()
		if d.Before(start) || d.After(end) {
			continue
		}
		bars = append(bars, domain.PriceBar{Date: d, Close: r.Close})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// WriteBars merges bars into the symbol's Parquet file, deduplicating by
// date.
func (s *ParquetStore) WriteBars(_ context.Context, symbol string, timeframe domain.Timeframe, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	path := s.barPath(symbol, timeframe)
	existing, _ := parquet.ReadFile[BarRecord](path)

	seen := make(map[int64]BarRecord, len(existing)+len(bars))
	for _, r := range existing {
		seen[r.Date] = r
	}
	sym := strings.ToUpper(symbol)
	for _, b := range bars {
		ms := b.Date.UTC().UnixMilli()
		seen[ms] = BarRecord{Symbol: sym, Date: ms, Close: b.Close}
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, merged); err != nil {
		return fmt.Errorf("writing bars for %s: %w", sym, err)
	}
	return nil
}

// Close is a no-op; Parquet files are opened per call.
func (s *ParquetStore) Close() error { return nil }

// barPath returns the cache file path.
// Layout: <dataDir>/bars/<timeframe>/<SYMBOL>.parquet
func (s *ParquetStore) barPath(symbol string, timeframe domain.Timeframe) string {
	return filepath.Join(s.DataDir, "bars", string(timeframe), strings.ToUpper(symbol)+".parquet")
}
