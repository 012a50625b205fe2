package curation

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"boldrank/internal/criteria"
	"boldrank/internal/record"
)

// Summary reports what BestPerBIN kept.
type Summary struct {
	Read       int
	Unranked   int
	BINs       int
	WithoutBIN int
	Kept       int
	BadRows    []record.BadRow
}

type row struct {
	tier  int
	cells []string
}

// BestPerBIN reads ranked records from in and writes one record per bin_uri to
// out: the one with the best tier, the earliest on ties. Rows with an empty
// ranking are dropped, rows without a BIN are all kept, and criterion columns
// are left out. Output keeps input order.
func BestPerBIN(in io.Reader, out io.Writer) (Summary, error) {
	reader, err := record.NewReader(in, record.AssignIDs())
	if err != nil {
		return Summary{}, fmt.Errorf("read ranked records: %w", err)
	}
	if err := reader.Require(record.ColumnRanking, record.ColumnBIN); err != nil {
		return Summary{}, err
	}

	var header []string
	for _, column := range reader.Header() {
		if isCriterion(column) {
			continue
		}
		header = append(header, column)
	}

	var (
		summary Summary
		kept    []*row
		byBIN   = make(map[string]*row)
	)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		summary.Read++

		tier, ok := parseTier(rec.String(record.ColumnRanking))
		if !ok {
			summary.Unranked++
			continue
		}
		r := &row{tier: tier, cells: cells(rec, header)}

		bin := rec.String(record.ColumnBIN)
		if bin == "" || bin == record.Placeholder {
			summary.WithoutBIN++
			kept = append(kept, r)
			continue
		}
		best, seen := byBIN[bin]
		if !seen {
			byBIN[bin] = r
			kept = append(kept, r)
			continue
		}
		if better(r.tier, best.tier) {
			*best = *r
		}
	}
	summary.BadRows = reader.BadRows()
	summary.BINs = len(byBIN)

	writer, err := record.NewWriter(out, header)
	if err != nil {
		return summary, err
	}
	for _, r := range kept {
		if err := writer.Write(r.cells...); err != nil {
			return summary, fmt.Errorf("write curated record: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return summary, fmt.Errorf("flush curated output: %w", err)
	}
	summary.Kept = len(kept)
	return summary, nil
}

// better orders tiers 1 (best) through 6, then 0.
func better(a, b int) bool {
	return sortKey(a) < sortKey(b)
}

func sortKey(tier int) int {
	if tier <= 0 {
		return 7
	}
	return tier
}

func parseTier(cell string) (int, bool) {
	if cell == "" {
		return 0, false
	}
	tier, err := strconv.Atoi(cell)
	if err != nil {
		f, ferr := strconv.ParseFloat(cell, 64)
		if ferr != nil {
			return 0, false
		}
		tier = int(f)
	}
	return tier, true
}

func isCriterion(column string) bool {
	for _, name := range criteria.All() {
		if string(name) == column {
			return true
		}
	}
	return false
}

func cells(rec record.Record, header []string) []string {
	out := make([]string, len(header))
	for i, column := range header {
		if column == record.ColumnRecordID {
			out[i] = strconv.FormatInt(rec.ID, 10)
			continue
		}
		value := rec.String(column)
		if value == record.Placeholder {
			value = ""
		}
		out[i] = value
	}
	return out
}
