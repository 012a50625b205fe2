package testsupport

import (
	"context"
	"testing"

	"boldrank/internal/config"
	"boldrank/internal/record"
	"boldrank/internal/store"
)

// MustOpenStore opens the configured database and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// InsertRecords stores records built from field maps, numbering them from 1.
func InsertRecords(t testing.TB, st *store.Store, rows ...map[string]string) []record.Record {
	t.Helper()

	records := make([]record.Record, len(rows))
	for i, fields := range rows {
		records[i] = record.New(int64(i+1), fields)
	}
	if err := st.InsertRecords(context.Background(), records); err != nil {
		t.Fatalf("store.InsertRecords: %v", err)
	}
	return records
}
