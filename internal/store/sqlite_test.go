package store

import (
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Fatal(err)
	}
	runBarStoreTests(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
