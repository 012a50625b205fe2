package ranking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"boldrank/internal/criteria"
	"boldrank/internal/record"
)

const defaultChunkSize = 10000

// ApplyOptions tunes Apply.
type ApplyOptions struct {
	// ChunkSize is the number of rows between flushes and progress callbacks.
	ChunkSize int
	// OnChunk receives the running row count after each chunk.
	OnChunk func(rows int)
}

// Summary reports what Apply wrote.
type Summary struct {
	Distribution Distribution
	// Unmatched counts records the index had no verdicts for.
	Unmatched int
	BadRows   []record.BadRow
}

// Apply streams records from in, left-joins each with idx, and writes every
// record to out with its criterion columns taken from idx and a ranking
// column appended. Criterion columns already present in the input act as an
// older source: idx overrides them, and they still count when idx has no
// verdict for that criterion. Input without a record id column is numbered
// from 1, as load numbers it.
func Apply(ctx context.Context, in io.Reader, idx *Index, out io.Writer, opts ApplyOptions) (Summary, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}

	reader, err := record.NewReader(in, record.AssignIDs())
	if err != nil {
		return Summary{}, fmt.Errorf("read records: %w", err)
	}
	inputHeader := reader.Header()
	header := outputHeader(inputHeader, idx.Criteria())

	writer, err := record.NewWriter(out, header)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	rows := 0
	cells := make([]string, len(header))
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}

		verdicts, matched := Merge(rec, idx)
		if !matched {
			summary.Unmatched++
		}
		tier := Rank(verdicts)
		summary.Distribution.Add(tier)

		for i, column := range header {
			switch {
			case column == record.ColumnRecordID:
				cells[i] = strconv.FormatInt(rec.ID, 10)
			case column == record.ColumnRanking:
				cells[i] = tier.String()
			case isCriterion(column):
				cells[i] = verdictCell(verdicts, criteria.Name(column))
			default:
				cells[i] = rec.String(column)
			}
		}
		if err := writer.Write(cells...); err != nil {
			return summary, fmt.Errorf("write record %d: %w", rec.ID, err)
		}

		rows++
		if rows%opts.ChunkSize == 0 {
			if err := writer.Flush(); err != nil {
				return summary, fmt.Errorf("flush output: %w", err)
			}
			if opts.OnChunk != nil {
				opts.OnChunk(rows)
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return summary, fmt.Errorf("flush output: %w", err)
	}
	if opts.OnChunk != nil && rows%opts.ChunkSize != 0 {
		opts.OnChunk(rows)
	}
	summary.BadRows = reader.BadRows()
	return summary, nil
}

// Merge builds a record's verdicts from its own criterion columns overlaid
// with the index. matched reports whether the index had the record.
func Merge(rec record.Record, idx *Index) (Verdicts, bool) {
	verdicts := make(Verdicts)
	for _, name := range criteria.All() {
		if cell, ok := rec.Value(string(name)); ok {
			verdicts[name] = criteria.ParseVerdict(cell)
		}
	}
	indexed, matched := idx.Lookup(rec.ID)
	for name, v := range indexed {
		verdicts[name] = v
	}
	return verdicts, matched
}

func outputHeader(input []string, indexed []criteria.Name) []string {
	header := slices.Clone(input)
	if !slices.Contains(header, record.ColumnRecordID) {
		header = slices.Insert(header, 0, record.ColumnRecordID)
	}
	for _, name := range indexed {
		if !slices.Contains(header, string(name)) {
			header = append(header, string(name))
		}
	}
	if !slices.Contains(header, record.ColumnRanking) {
		header = append(header, record.ColumnRanking)
	}
	return header
}

func isCriterion(column string) bool {
	return slices.Contains(criteria.All(), criteria.Name(column))
}

func verdictCell(v Verdicts, name criteria.Name) string {
	verdict, ok := v[name]
	if !ok {
		return ""
	}
	return verdict.String()
}

// RankAll ranks every record from src against idx and hands each tier to fn.
func RankAll(ctx context.Context, src criteria.Source, idx *Index, fn func(rec record.Record, tier Tier) error) (Summary, error) {
	var summary Summary
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			return summary, fmt.Errorf("read record: %w", err)
		}
		verdicts, matched := Merge(rec, idx)
		if !matched {
			summary.Unmatched++
		}
		tier := Rank(verdicts)
		summary.Distribution.Add(tier)
		if err := fn(rec, tier); err != nil {
			return summary, err
		}
	}
}
