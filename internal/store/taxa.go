package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"boldrank/internal/taxonomy"
)

// FindTaxon implements taxonomy.Store. A zero parent matches only root nodes.
func (s *Store) FindTaxon(ctx context.Context, key taxonomy.Key) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT taxonid FROM taxa
         WHERE kingdom = ? AND name = ? AND level = ? AND parent_taxonid IS ?`,
		key.Kingdom, key.Name, key.Level, nullableInt64(key.Parent),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find taxon %q: %w", key.Name, err)
	}
	return id, true, nil
}

// CreateTaxon implements taxonomy.Store. When another writer inserted the same
// node first, its id is returned.
func (s *Store) CreateTaxon(ctx context.Context, key taxonomy.Key) (int64, error) {
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO taxa (kingdom, name, level, parent_taxonid) VALUES (?, ?, ?, ?)
             ON CONFLICT DO NOTHING`,
			key.Kingdom, key.Name, key.Level, nullableInt64(key.Parent),
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 1 {
			id, err = res.LastInsertId()
			return err
		}
		var found bool
		id, found, err = s.FindTaxon(ctx, key)
		if err == nil && !found {
			err = fmt.Errorf("taxon %q vanished after conflict", key.Name)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create taxon %q: %w", key.Name, err)
	}
	return id, nil
}

// Taxon returns the key of a stored node.
func (s *Store) Taxon(ctx context.Context, id int64) (taxonomy.Key, error) {
	var (
		key    taxonomy.Key
		parent sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT kingdom, name, level, parent_taxonid FROM taxa WHERE taxonid = ?", id,
	).Scan(&key.Kingdom, &key.Name, &key.Level, &parent)
	if err != nil {
		return taxonomy.Key{}, fmt.Errorf("read taxon %d: %w", id, err)
	}
	key.Parent = parent.Int64
	return key, nil
}

// TaxonCount returns the number of stored taxa.
func (s *Store) TaxonCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM taxa").Scan(&count); err != nil {
		return 0, fmt.Errorf("count taxa: %w", err)
	}
	return count, nil
}
