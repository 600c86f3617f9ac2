package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tradelab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

// SQLiteStore implements BarStore backed by a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT    NOT NULL,
	timeframe TEXT    NOT NULL,
	date      INTEGER NOT NULL, -- Unix ms, midnight UTC
	close     REAL    NOT NULL,
	PRIMARY KEY (symbol, timeframe, date)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bars table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// ReadBars reads cached bars for the symbol within [start, end], ascending.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, close FROM bars
		 WHERE symbol = ? AND timeframe = ? AND date BETWEEN ? AND ?
		 ORDER BY date ASC`,
		strings.ToUpper(symbol), string(timeframe),
		start.UTC().UnixMilli(), end.UTC().UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var ms int64
		var close float64
		if err := rows.Scan(&ms, &close); err != nil {
			return nil, err
		}
		bars = append(bars, domain.PriceBar{Date: time.UnixMilli(ms).UTC(), Close: close})
	}
	return bars, rows.Err()
}

// WriteBars upserts bars for the symbol in one transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, symbol string, timeframe domain.Timeframe, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO bars (symbol, timeframe, date, close) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	sym := strings.ToUpper(symbol)
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, sym, string(timeframe), b.Date.UTC().UnixMilli(), b.Close); err != nil {
			return fmt.Errorf("inserting bar %s %s: %w", sym, b.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
