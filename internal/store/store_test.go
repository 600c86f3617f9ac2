package store

import (
	"context"
	"testing"
	"time"

	"tradelab/internal/domain"
)

func dailyBars(start time.Time, closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return bars
}

// runBarStoreTests exercises the BarStore contract shared by both backends.
func runBarStoreTests(t *testing.T, s BarStore) {
	ctx := context.Background()
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	far := start.AddDate(1, 0, 0)

	t.Run("missing symbol is empty", func(t *testing.T) {
		bars, err := s.ReadBars(ctx, "NONE", domain.TimeframeDaily, start, far)
		if err != nil {
			t.Fatal(err)
		}
		if len(bars) != 0 {
			t.Errorf("len(bars) = %d, want 0 for an uncached symbol", len(bars))
		}
	})

	t.Run("roundtrip", func(t *testing.T) {
		want := dailyBars(start, []float64{10, 11, 12, 13, 14})
		if err := s.WriteBars(ctx, "aapl", domain.TimeframeDaily, want); err != nil {
			t.Fatal(err)
		}

		// Symbol casing must not matter.
		got, err := s.ReadBars(ctx, "AAPL", domain.TimeframeDaily, start, far)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("len(got) = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if !got[i].Date.Equal(want[i].Date) || got[i].Close != want[i].Close {
				t.Errorf("bar[%d] = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("range filter", func(t *testing.T) {
		got, err := s.ReadBars(ctx, "AAPL", domain.TimeframeDaily,
			start.AddDate(0, 0, 1), start.AddDate(0, 0, 3))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("len(got) = %d, want 3 inside the range", len(got))
		}
		if got[0].Close != 11 || got[2].Close != 13 {
			t.Errorf("range = [%v .. %v], want closes 11 .. 13", got[0].Close, got[2].Close)
		}
	})

	t.Run("timeframes are separate", func(t *testing.T) {
		got, err := s.ReadBars(ctx, "AAPL", domain.TimeframeWeekly, start, far)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("len(got) = %d, want 0 under the weekly timeframe", len(got))
		}
	})

	t.Run("merge dedupes by date", func(t *testing.T) {
		// Overwrite day 2 and extend by two days; incoming bars win.
		update := dailyBars(start.AddDate(0, 0, 2), []float64{99, 15, 16})
		if err := s.WriteBars(ctx, "AAPL", domain.TimeframeDaily, update); err != nil {
			t.Fatal(err)
		}

		got, err := s.ReadBars(ctx, "AAPL", domain.TimeframeDaily, start, far)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 7 {
			t.Fatalf("len(got) = %d, want 7 after the merge", len(got))
		}
		if got[2].Close != 99 {
			t.Errorf("overwritten close = %v, want 99", got[2].Close)
		}
		for i := 1; i < len(got); i++ {
			if !got[i].Date.After(got[i-1].Date) {
				t.Fatalf("bars not strictly ascending at %d", i)
			}
		}
	})

	t.Run("empty write is a no-op", func(t *testing.T) {
		if err := s.WriteBars(ctx, "AAPL", domain.TimeframeDaily, nil); err != nil {
			t.Fatal(err)
		}
	})
}
