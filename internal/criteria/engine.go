package criteria

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"boldrank/internal/record"
)

// Source yields records until io.EOF. *record.Reader satisfies it.
type Source interface {
	Next() (record.Record, error)
}

// Engine evaluates a fixed selection of criteria.
type Engine struct {
	local     []Criterion
	delegated []Name
}

// NewEngine selects criteria by name; no selectors selects all of them.
func NewEngine(selectors ...string) (*Engine, error) {
	selected, err := Lookup(selectors...)
	if err != nil {
		return nil, err
	}
	e := &Engine{}
	for _, c := range selected {
		if IsDelegated(c.Name()) {
			e.delegated = append(e.delegated, c.Name())
			continue
		}
		e.local = append(e.local, c)
	}
	return e, nil
}

// Names lists the locally evaluated criteria.
func (e *Engine) Names() []Name {
	out := make([]Name, len(e.local))
	for i, c := range e.local {
		out[i] = c.Name()
	}
	return out
}

// Delegated lists selected criteria the engine leaves to other packages.
func (e *Engine) Delegated() []Name {
	return append([]Name(nil), e.delegated...)
}

// Columns lists the input columns the local criteria read.
func (e *Engine) Columns() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range e.local {
		for _, column := range c.Columns() {
			if _, ok := seen[column]; ok {
				continue
			}
			seen[column] = struct{}{}
			out = append(out, column)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks that every column the selection needs is present in the
// input header. Run it before reading the first record.
func (e *Engine) Validate(header []string) error {
	have := make(map[string]struct{}, len(header))
	for _, column := range header {
		have[column] = struct{}{}
	}
	var missing []string
	for _, c := range e.local {
		for _, column := range c.Columns() {
			if _, ok := have[column]; !ok {
				missing = append(missing, fmt.Sprintf("%s (%s)", column, c.Name()))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", record.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Assess evaluates every local criterion against rec.
func (e *Engine) Assess(rec record.Record) []Result {
	results := make([]Result, len(e.local))
	for i, c := range e.local {
		v, note := c.Assess(rec)
		results[i] = Result{RecordID: rec.ID, Criterion: c.Name(), Verdict: v, Note: note}
	}
	return results
}

// AssessAll fans records from src out to workers and hands each record's
// results to sink. sink is called from a single goroutine; result order across
// records is not preserved. It returns the number of records assessed.
func (e *Engine) AssessAll(ctx context.Context, src Source, workers int, sink func([]Result) error) (int, error) {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan record.Record, workers*4)
	results := make(chan []Result, workers*4)

	g.Go(func() error {
		defer close(records)
		for {
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			select {
			case records <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var running sync.WaitGroup
	running.Add(workers)
	for range workers {
		g.Go(func() error {
			defer running.Done()
			for rec := range records {
				select {
				case results <- e.Assess(rec):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		running.Wait()
		close(results)
	}()

	var assessed int
	g.Go(func() error {
		for batch := range results {
			if err := sink(batch); err != nil {
				return err
			}
			assessed++
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return assessed, err
	}
	return assessed, nil
}
