package store

import (
	"context"
	"database/sql"
	"fmt"

	"boldrank/internal/criteria"
)

// SaveResults appends criterion results. Earlier results are kept; readers
// decide which one wins for a repeated record/criterion pair.
func (s *Store) SaveResults(ctx context.Context, runID string, results []criteria.Result) error {
	if len(results) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO criteria_results (record_id, criterion, verdict, note, run_id) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare result insert: %w", err)
		}
		defer stmt.Close()

		for _, res := range results {
			var verdict any
			if res.Verdict != criteria.Unknown {
				verdict = int(res.Verdict)
			}
			if _, err := stmt.ExecContext(ctx, res.RecordID, string(res.Criterion), verdict, nullableString(res.Note), nullableString(runID)); err != nil {
				return fmt.Errorf("insert %s result for record %d: %w", res.Criterion, res.RecordID, err)
			}
		}
		return nil
	})
}

// EachResult calls fn for every stored result in insertion order. fn must not
// use the store.
func (s *Store) EachResult(ctx context.Context, fn func(criteria.Result) error) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, criterion, verdict, note FROM criteria_results ORDER BY id")
	if err != nil {
		return fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res     criteria.Result
			name    string
			verdict sql.NullInt64
			note    sql.NullString
		)
		if err := rows.Scan(&res.RecordID, &name, &verdict, &note); err != nil {
			return fmt.Errorf("scan result: %w", err)
		}
		res.Criterion = criteria.Name(name)
		res.Verdict = criteria.Unknown
		if verdict.Valid {
			res.Verdict = criteria.Verdict(verdict.Int64)
		}
		res.Note = note.String
		if err := fn(res); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate results: %w", err)
	}
	return nil
}

// ResultCounts returns how many stored results each criterion has, split by
// verdict.
func (s *Store) ResultCounts(ctx context.Context) (map[criteria.Name]map[criteria.Verdict]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT criterion, verdict, COUNT(1) FROM criteria_results GROUP BY criterion, verdict")
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	defer rows.Close()

	counts := make(map[criteria.Name]map[criteria.Verdict]int)
	for rows.Next() {
		var (
			name    string
			verdict sql.NullInt64
			count   int
		)
		if err := rows.Scan(&name, &verdict, &count); err != nil {
			return nil, fmt.Errorf("scan result count: %w", err)
		}
		v := criteria.Unknown
		if verdict.Valid {
			v = criteria.Verdict(verdict.Int64)
		}
		if counts[criteria.Name(name)] == nil {
			counts[criteria.Name(name)] = make(map[criteria.Verdict]int)
		}
		counts[criteria.Name(name)][v] += count
	}
	return counts, rows.Err()
}
