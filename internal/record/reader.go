package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMissingColumn reports a required column absent from a TSV header.
var ErrMissingColumn = errors.New("missing required column")

const maxBadRowSample = 200

// BadRow describes a skipped input line.
type BadRow struct {
	Line   int
	Reason string
	Sample string
}

// Reader streams records from a TSV with a header row.
type Reader struct {
	br        *bufio.Reader
	header    []string
	index     map[string]int
	idColumn  int
	assignIDs bool
	nextID    int64
	line      int
	bad       []BadRow
}

// ReaderOption customizes a Reader.
type ReaderOption func(*Reader)

// AssignIDs numbers records sequentially from 1 when the header has no record
// id column, matching how raw dumps are loaded into the store.
func AssignIDs() ReaderOption {
	return func(r *Reader) {
		r.assignIDs = true
	}
}

// NewReader consumes the header row and prepares the column index.
func NewReader(src io.Reader, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		br:       bufio.NewReaderSize(src, 1<<20),
		idColumn: -1,
	}
	for _, opt := range opts {
		opt(r)
	}

	line, err := r.readLine()
	if errors.Is(err, io.EOF) && line == "" {
		return nil, errors.New("read header: empty input")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !utf8.ValidString(line) {
		return nil, errors.New("read header: invalid utf-8")
	}

	cells := strings.Split(line, "\t")
	r.header = make([]string, len(cells))
	r.index = make(map[string]int, len(cells))
	for i, cell := range cells {
		name := CanonicalColumn(cell)
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("read header: duplicate column %q", name)
		}
		r.header[i] = name
		r.index[name] = i
	}
	if idx, ok := r.index[ColumnRecordID]; ok {
		r.idColumn = idx
	} else if !r.assignIDs {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnRecordID)
	}
	return r, nil
}

// Header returns the normalized column names in file order.
func (r *Reader) Header() []string {
	out := make([]string, len(r.header))
	copy(out, r.header)
	return out
}

// HasColumn reports whether the header carries the column.
func (r *Reader) HasColumn(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Require fails with ErrMissingColumn naming every absent column.
func (r *Reader) Require(columns ...string) error {
	var missing []string
	for _, column := range columns {
		if !r.HasColumn(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Next returns the next well-formed record or io.EOF. Malformed rows are
// skipped and recorded in BadRows.
func (r *Reader) Next() (Record, error) {
	for {
		line, err := r.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, fmt.Errorf("read line %d: %w", r.line, err)
		}
		if line == "" {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			continue
		}

		rec, reason := r.parse(line)
		if reason != "" {
			r.reject(line, reason)
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			continue
		}
		return rec, nil
	}
}

// BadRows returns the rows skipped so far.
func (r *Reader) BadRows() []BadRow {
	out := make([]BadRow, len(r.bad))
	copy(out, r.bad)
	return out
}

func (r *Reader) parse(line string) (Record, string) {
	if !utf8.ValidString(line) {
		return Record{}, "invalid utf-8"
	}
	cells := strings.Split(line, "\t")
	if len(cells) != len(r.header) {
		return Record{}, fmt.Sprintf("expected %d fields, found %d", len(r.header), len(cells))
	}

	var id int64
	if r.idColumn >= 0 {
		parsed, err := strconv.ParseInt(strings.TrimSpace(cells[r.idColumn]), 10, 64)
		if err != nil {
			return Record{}, fmt.Sprintf("invalid record id %q", cells[r.idColumn])
		}
		id = parsed
	} else {
		r.nextID++
		id = r.nextID
	}

	fields := make(map[string]string, len(cells))
	for i, cell := range cells {
		if i == r.idColumn {
			continue
		}
		fields[r.header[i]] = cell
	}
	return New(id, fields), ""
}

func (r *Reader) reject(line, reason string) {
	sample := line
	if len(sample) > maxBadRowSample {
		sample = sample[:maxBadRowSample]
	}
	r.bad = append(r.bad, BadRow{Line: r.line, Reason: reason, Sample: sample})
}

func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if line != "" || err == nil {
		r.line++
	}
	line = strings.TrimRight(line, "\r\n")
	return line, err
}
