package ranking

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"boldrank/internal/criteria"
	"boldrank/internal/record"
)

// Precedence decides which verdict wins when a record/criterion pair arrives
// more than once.
type Precedence int

const (
	// PreferLatest keeps the verdict added last.
	PreferLatest Precedence = iota
	// PreferEarliest keeps the verdict added first.
	PreferEarliest
)

// ParsePrecedence reads "latest" or "earliest".
func ParsePrecedence(value string) (Precedence, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "latest":
		return PreferLatest, nil
	case "earliest":
		return PreferEarliest, nil
	default:
		return 0, fmt.Errorf("unknown precedence %q", value)
	}
}

// Index maps record ids to their criterion verdicts.
type Index struct {
	precedence Precedence
	verdicts   map[int64]Verdicts
	seen       map[criteria.Name]struct{}
	replaced   int
}

// NewIndex returns an empty index using the given precedence.
func NewIndex(p Precedence) *Index {
	return &Index{
		precedence: p,
		verdicts:   make(map[int64]Verdicts),
		seen:       make(map[criteria.Name]struct{}),
	}
}

// Add merges one result.
func (x *Index) Add(res criteria.Result) {
	x.seen[res.Criterion] = struct{}{}
	v, ok := x.verdicts[res.RecordID]
	if !ok {
		v = make(Verdicts)
		x.verdicts[res.RecordID] = v
	}
	if prev, dup := v[res.Criterion]; dup {
		if x.precedence == PreferEarliest {
			return
		}
		if prev != res.Verdict {
			x.replaced++
		}
	}
	v[res.Criterion] = res.Verdict
}

// Lookup returns the verdicts for a record.
func (x *Index) Lookup(id int64) (Verdicts, bool) {
	v, ok := x.verdicts[id]
	return v, ok
}

// Len returns the number of records with at least one verdict.
func (x *Index) Len() int { return len(x.verdicts) }

// Replaced counts earlier verdicts overridden by a later, different one.
func (x *Index) Replaced() int { return x.replaced }

// Criteria lists the criteria seen so far in report order.
func (x *Index) Criteria() []criteria.Name {
	var out []criteria.Name
	for _, name := range criteria.All() {
		if _, ok := x.seen[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// LoadStats describes one loaded source.
type LoadStats struct {
	Results int
	Skipped []record.BadRow
}

// LoadWide reads a TSV with a record id column and one column per criterion.
// Other columns are ignored; empty cells add nothing.
func (x *Index) LoadWide(src io.Reader) (LoadStats, error) {
	reader, err := record.NewReader(src)
	if err != nil {
		return LoadStats{}, fmt.Errorf("read wide criteria: %w", err)
	}
	var names []criteria.Name
	for _, column := range reader.Header() {
		if name, err := criteria.ParseName(column); err == nil && string(name) == column {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return LoadStats{}, fmt.Errorf("read wide criteria: %w: no criterion columns", record.ErrMissingColumn)
	}

	var stats LoadStats
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		for _, name := range names {
			cell, ok := rec.Value(string(name))
			if !ok {
				continue
			}
			x.Add(criteria.Result{RecordID: rec.ID, Criterion: name, Verdict: criteria.ParseVerdict(cell)})
			stats.Results++
		}
	}
	stats.Skipped = reader.BadRows()
	return stats, nil
}

// LoadLong reads rows of record id, criterion, status and an optional note.
// A header row is detected by its record id column and skipped.
func (x *Index) LoadLong(src io.Reader) (LoadStats, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		stats LoadStats
		line  int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		cells := strings.Split(text, "\t")
		if line == 1 && record.CanonicalColumn(cells[0]) == record.ColumnRecordID {
			continue
		}
		res, reason := parseLong(cells)
		if reason != "" {
			stats.Skipped = append(stats.Skipped, record.BadRow{Line: line, Reason: reason, Sample: text})
			continue
		}
		x.Add(res)
		stats.Results++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read long criteria line %d: %w", line+1, err)
	}
	return stats, nil
}

func parseLong(cells []string) (criteria.Result, string) {
	if len(cells) < 3 {
		return criteria.Result{}, fmt.Sprintf("expected at least 3 fields, found %d", len(cells))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(cells[0]), 10, 64)
	if err != nil {
		return criteria.Result{}, fmt.Sprintf("invalid record id %q", cells[0])
	}
	name, err := criteria.ParseName(cells[1])
	if err != nil {
		return criteria.Result{}, err.Error()
	}
	res := criteria.Result{RecordID: id, Criterion: name, Verdict: criteria.ParseVerdict(strings.TrimSpace(cells[2]))}
	if len(cells) > 3 {
		res.Note = cells[3]
	}
	return res, ""
}
