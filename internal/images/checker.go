package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"boldrank/internal/criteria"
	"boldrank/internal/logging"
	"boldrank/internal/record"
)

// Checker defaults.
const (
	DefaultBatchSize      = 200
	DefaultMaxInFlight    = 300
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultRequestTimeout = 60 * time.Second
)

// Lookuper performs one bulk lookup. *Client satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, processIDs []string) ([]Asset, error)
}

// Config tunes batching, admission and retries.
type Config struct {
	BatchSize      int
	MaxInFlight    int
	Retry          RetryPolicy
	RequestTimeout time.Duration
	ObjectBaseURL  string
}

// DefaultConfig returns the settings the index operators asked clients to use.
func DefaultConfig() Config {
	return Config{
		BatchSize:      DefaultBatchSize,
		MaxInFlight:    DefaultMaxInFlight,
		Retry:          RetryPolicy{MaxRetries: DefaultMaxRetries, Delay: DefaultRetryDelay},
		RequestTimeout: DefaultRequestTimeout,
		ObjectBaseURL:  DefaultObjectBaseURL,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = def.MaxInFlight
	}
	if c.Retry == (RetryPolicy{}) {
		c.Retry = def.Retry
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if strings.TrimSpace(c.ObjectBaseURL) == "" {
		c.ObjectBaseURL = def.ObjectBaseURL
	}
	return c
}

// Outcome is the HAS_IMAGE decision for one record. Verdict is Unknown when
// the record's batch failed; Err then says why.
type Outcome struct {
	RecordID  int64
	ProcessID string
	Verdict   criteria.Verdict
	URL       string
	Attempts  int
	Err       error
}

// Result converts the outcome into a criterion result. The note carries the
// image URL, or the failure for unknown verdicts.
func (o Outcome) Result() criteria.Result {
	res := criteria.Result{RecordID: o.RecordID, Criterion: criteria.HasImage, Verdict: o.Verdict}
	switch {
	case o.Verdict == criteria.Pass:
		res.Note = o.URL
	case o.Err != nil:
		res.Note = o.Err.Error()
	case o.ProcessID == "":
		res.Note = "no process id"
	}
	return res
}

// Summary counts what a run decided.
type Summary struct {
	Records       int
	Present       int
	Absent        int
	Unknown       int
	Batches       int
	FailedBatches int
	Waves         int
}

func (s *Summary) add(outcomes []Outcome) {
	for _, o := range outcomes {
		s.Records++
		switch o.Verdict {
		case criteria.Pass:
			s.Present++
		case criteria.Fail:
			s.Absent++
		default:
			s.Unknown++
		}
	}
}

// Checker runs batched lookups for a stream of records.
type Checker struct {
	lookup Lookuper
	cfg    Config
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewChecker builds a checker; zero config fields take defaults. A zero Retry
// takes the default policy; set MaxRetries to -1 for a single attempt.
func NewChecker(lookup Lookuper, cfg Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{
		lookup: lookup,
		cfg:    cfg.withDefaults(),
		logger: logger.With(logging.String(logging.FieldComponent, "images")),
		sleep:  sleepWithContext,
	}
}

type batch struct {
	index    int
	subjects []record.Record
}

type batchResult struct {
	assets   []Asset
	attempts int
	err      error
}

// Check reads src to exhaustion and calls emit once per completed wave with
// an outcome for every record of that wave. When ctx is cancelled the current
// wave is reported as Unknown and Check returns the context error without
// admitting more records.
func (c *Checker) Check(ctx context.Context, src criteria.Source, emit func([]Outcome) error) (Summary, error) {
	var summary Summary
	batchIndex := 0
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		wave, direct, done, err := c.admit(src, &batchIndex)
		if err != nil {
			return summary, err
		}
		if len(wave) == 0 && len(direct) == 0 {
			break
		}

		outcomes := append(direct, c.runWave(ctx, wave, &summary)...)
		summary.Waves++
		summary.add(outcomes)
		if err := emit(outcomes); err != nil {
			return summary, fmt.Errorf("emit image outcomes: %w", err)
		}
		if done {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// admit reads up to one wave of batches. Records without a process id cannot
// match anything and are decided directly; they count toward the wave's
// record budget so a long run of them is still emitted in bounded slices.
func (c *Checker) admit(src criteria.Source, batchIndex *int) ([]batch, []Outcome, bool, error) {
	var (
		wave     []batch
		direct   []Outcome
		current  []record.Record
		admitted int
	)
	budget := c.cfg.BatchSize * c.cfg.MaxInFlight
	flush := func() {
		if len(current) == 0 {
			return
		}
		wave = append(wave, batch{index: *batchIndex, subjects: current})
		*batchIndex++
		current = nil
	}
	for len(wave) < c.cfg.MaxInFlight && admitted < budget {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			flush()
			return wave, direct, true, nil
		}
		if err != nil {
			return nil, nil, false, fmt.Errorf("read record: %w", err)
		}
		admitted++
		if processIDOf(rec) == "" {
			direct = append(direct, Outcome{RecordID: rec.ID, Verdict: criteria.Fail})
			continue
		}
		current = append(current, rec)
		if len(current) == c.cfg.BatchSize {
			flush()
		}
	}
	flush()
	return wave, direct, false, nil
}

func processIDOf(rec record.Record) string {
	id, _ := rec.Present(record.ColumnProcessID)
	return strings.TrimSpace(id)
}

func (c *Checker) runWave(ctx context.Context, wave []batch, summary *Summary) []Outcome {
	if len(wave) == 0 {
		return nil
	}
	results := make([]batchResult, len(wave))
	var g errgroup.Group
	g.SetLimit(c.cfg.MaxInFlight)
	for i, b := range wave {
		g.Go(func() error {
			results[i] = c.fetch(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	var outcomes []Outcome
	for i, b := range wave {
		res := results[i]
		summary.Batches++
		if res.err != nil {
			summary.FailedBatches++
			c.logger.Warn("image batch failed; records marked unknown",
				logging.Int("batch", b.index),
				logging.Int("records", len(b.subjects)),
				logging.Int("attempts", res.attempts),
				logging.Error(res.err),
			)
		}
		outcomes = append(outcomes, c.match(b, res)...)
	}
	return outcomes
}

func (c *Checker) match(b batch, res batchResult) []Outcome {
	objects := make(map[string]string, len(res.assets))
	for _, asset := range res.assets {
		if _, seen := objects[asset.ProcessID]; !seen {
			objects[asset.ProcessID] = asset.ObjectID
		}
	}
	outcomes := make([]Outcome, len(b.subjects))
	for i, rec := range b.subjects {
		processID := processIDOf(rec)
		out := Outcome{RecordID: rec.ID, ProcessID: processID, Attempts: res.attempts}
		switch objectID, ok := objects[processID]; {
		case res.err != nil:
			out.Verdict = criteria.Unknown
			out.Err = res.err
		case ok:
			out.Verdict = criteria.Pass
			out.URL = c.cfg.ObjectBaseURL + objectID
		default:
			out.Verdict = criteria.Fail
		}
		outcomes[i] = out
	}
	return outcomes
}

// fetch issues the lookup for one batch, retrying transient failures.
func (c *Checker) fetch(ctx context.Context, b batch) batchResult {
	ids := make([]string, len(b.subjects))
	for i, rec := range b.subjects {
		ids[i] = processIDOf(rec)
	}

	maxAttempts := c.cfg.Retry.Attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		assets, err := c.lookup.Lookup(reqCtx, ids)
		cancel()
		if err == nil {
			return batchResult{assets: assets, attempts: attempt}
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return batchResult{attempts: attempt, err: fmt.Errorf("image lookup aborted: %w", ctxErr)}
		}
		if !IsTransient(err) {
			return batchResult{attempts: attempt, err: err}
		}
		if attempt == maxAttempts {
			break
		}
		c.logger.Debug("retrying image batch",
			logging.Int("batch", b.index),
			logging.Int("attempt", attempt),
			logging.Duration("delay", c.cfg.Retry.Delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, c.cfg.Retry.Delay); err != nil {
			return batchResult{attempts: attempt, err: fmt.Errorf("image lookup aborted: %w", err)}
		}
	}
	return batchResult{attempts: maxAttempts, err: fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)}
}
