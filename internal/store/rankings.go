package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tier is a stored ranking for one record.
type Tier struct {
	RecordID int64
	Tier     int
}

// SaveTiers upserts tiers; a record keeps only its latest tier.
func (s *Store) SaveTiers(ctx context.Context, runID string, tiers []Tier) error {
	if len(tiers) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO rankings (record_id, tier, run_id) VALUES (?, ?, ?)
             ON CONFLICT (record_id) DO UPDATE SET tier = excluded.tier, run_id = excluded.run_id`)
		if err != nil {
			return fmt.Errorf("prepare tier upsert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tiers {
			if _, err := stmt.ExecContext(ctx, t.RecordID, t.Tier, nullableString(runID)); err != nil {
				return fmt.Errorf("save tier for record %d: %w", t.RecordID, err)
			}
		}
		return nil
	})
}

// TierOf returns a record's stored tier.
func (s *Store) TierOf(ctx context.Context, recordID int64) (int, bool, error) {
	var tier int
	err := s.db.QueryRowContext(ctx, "SELECT tier FROM rankings WHERE record_id = ?", recordID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read tier of record %d: %w", recordID, err)
	}
	return tier, true, nil
}

// TierCounts returns the number of records per stored tier.
func (s *Store) TierCounts(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tier, COUNT(1) FROM rankings GROUP BY tier")
	if err != nil {
		return nil, fmt.Errorf("count tiers: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var tier, count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scan tier count: %w", err)
		}
		counts[tier] = count
	}
	return counts, rows.Err()
}
