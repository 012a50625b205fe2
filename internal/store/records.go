package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"boldrank/internal/record"
)

// SetColumns records the column order used when the dump is exported again.
func (s *Store) SetColumns(ctx context.Context, header []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_columns"); err != nil {
			return fmt.Errorf("clear columns: %w", err)
		}
		for i, name := range header {
			if _, err := tx.ExecContext(ctx, "INSERT INTO record_columns (position, name) VALUES (?, ?)", i, name); err != nil {
				return fmt.Errorf("insert column %q: %w", name, err)
			}
		}
		return nil
	})
}

// Columns returns the stored column order.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM record_columns ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// InsertRecords stores a batch of records in one transaction. Record ids must
// be unique across the database.
func (s *Store) InsertRecords(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO records (record_id, processid, fields_json) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			payload, err := json.Marshal(rec.Fields())
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", rec.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, nullableString(rec.String(record.ColumnProcessID)), string(payload)); err != nil {
				return fmt.Errorf("insert record %d: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// RecordCount returns the number of stored records.
func (s *Store) RecordCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM records").Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// TaxonLink assigns a taxon to a record.
type TaxonLink struct {
	RecordID int64
	TaxonID  int64
}

// SetTaxonIDs writes taxon assignments in one transaction.
func (s *Store) SetTaxonIDs(ctx context.Context, links []TaxonLink) error {
	if len(links) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE records SET taxonid = ? WHERE record_id = ?")
		if err != nil {
			return fmt.Errorf("prepare taxon update: %w", err)
		}
		defer stmt.Close()
		for _, link := range links {
			if _, err := stmt.ExecContext(ctx, link.TaxonID, link.RecordID); err != nil {
				return fmt.Errorf("link record %d: %w", link.RecordID, err)
			}
		}
		return nil
	})
}

// TaxonID returns the taxon linked to a record, or 0 when unlinked.
func (s *Store) TaxonID(ctx context.Context, recordID int64) (int64, error) {
	var taxonID sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT taxonid FROM records WHERE record_id = ?", recordID).Scan(&taxonID)
	if err != nil {
		return 0, fmt.Errorf("read taxon of record %d: %w", recordID, err)
	}
	return taxonID.Int64, nil
}

// CursorOption narrows a record cursor.
type CursorOption func(*RecordCursor)

// OnlyUnlinked limits the cursor to records without a taxon.
func OnlyUnlinked() CursorOption {
	return func(c *RecordCursor) {
		c.unlinked = true
	}
}

// PageSize sets how many records each query fetches.
func PageSize(n int) CursorOption {
	return func(c *RecordCursor) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// RecordCursor pages through records in id order. Each page is read fully
// before Next returns, so callers may write to the store between calls.
type RecordCursor struct {
	store    *Store
	ctx      context.Context
	pageSize int
	unlinked bool
	lastID   int64
	page     []record.Record
	done     bool
}

// Records returns a cursor over the stored records.
func (s *Store) Records(ctx context.Context, opts ...CursorOption) *RecordCursor {
	c := &RecordCursor{store: s, ctx: ctx, pageSize: 1000}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Next returns the next record or io.EOF.
func (c *RecordCursor) Next() (record.Record, error) {
	if len(c.page) == 0 {
		if c.done {
			return record.Record{}, io.EOF
		}
		if err := c.fetch(); err != nil {
			return record.Record{}, err
		}
		if len(c.page) == 0 {
			return record.Record{}, io.EOF
		}
	}
	rec := c.page[0]
	c.page = c.page[1:]
	return rec, nil
}

func (c *RecordCursor) fetch() error {
	query := "SELECT record_id, fields_json FROM records WHERE record_id > ?"
	if c.unlinked {
		query += " AND taxonid IS NULL"
	}
	query += " ORDER BY record_id LIMIT ?"

	rows, err := c.store.db.QueryContext(c.ctx, query, c.lastID, c.pageSize)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	page := make([]record.Record, 0, c.pageSize)
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		var fields map[string]string
		if err := json.Unmarshal([]byte(payload), &fields); err != nil {
			return fmt.Errorf("decode record %d: %w", id, err)
		}
		page = append(page, record.New(id, fields))
		c.lastID = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	c.page = page
	c.done = len(page) < c.pageSize
	return nil
}
