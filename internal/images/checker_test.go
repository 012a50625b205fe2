package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"boldrank/internal/criteria"
	"boldrank/internal/record"
)

type sliceSource struct {
	records []record.Record
	pos     int
}

func (s *sliceSource) Next() (record.Record, error) {
	if s.pos >= len(s.records) {
		return record.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func specimens(ids ...string) *sliceSource {
	src := &sliceSource{}
	for i, id := range ids {
		src.records = append(src.records, record.New(int64(i+1), map[string]string{record.ColumnProcessID: id}))
	}
	return src
}

// fakeLookup answers from a fixed table and can fail the first calls.
type fakeLookup struct {
	mu       sync.Mutex
	assets   map[string]string
	failures []error
	calls    int
	batches  [][]string
	inFlight int
	peak     int
	hold     time.Duration
}

func (f *fakeLookup) Lookup(ctx context.Context, ids []string) ([]Asset, error) {
	f.mu.Lock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), ids...))
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	var failure error
	if len(f.failures) > 0 {
		failure = f.failures[0]
		f.failures = f.failures[1:]
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.hold > 0 {
		if err := sleepWithContext(ctx, f.hold); err != nil {
			return nil, err
		}
	}
	if failure != nil {
		return nil, failure
	}
	var out []Asset
	for _, id := range ids {
		if objectID, ok := f.assets[id]; ok {
			out = append(out, Asset{ProcessID: id, ObjectID: objectID})
		}
	}
	return out, nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.Delay = time.Millisecond
	cfg.ObjectBaseURL = "https://objects.test/"
	return cfg
}

func collect(t *testing.T, checker *Checker, src criteria.Source) ([]Outcome, Summary, error) {
	t.Helper()
	var outcomes []Outcome
	summary, err := checker.Check(context.Background(), src, func(batch []Outcome) error {
		outcomes = append(outcomes, batch...)
		return nil
	})
	return outcomes, summary, err
}

func byRecord(outcomes []Outcome) map[int64]Outcome {
	m := make(map[int64]Outcome, len(outcomes))
	for _, o := range outcomes {
		m[o.RecordID] = o
	}
	return m
}

func TestCheckMatchesByProcessID(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{assets: map[string]string{"P1": "obj-1", "P3": "obj-3"}}
	checker := NewChecker(lookup, fastConfig(), nil)

	outcomes, summary, err := collect(t, checker, specimens("P1", "P2", "P3"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	got := byRecord(outcomes)
	if len(got) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(got))
	}
	if got[1].Verdict != criteria.Pass || got[1].URL != "https://objects.test/obj-1" {
		t.Fatalf("record 1 = %+v", got[1])
	}
	if got[2].Verdict != criteria.Fail || got[2].URL != "" {
		t.Fatalf("record 2 = %+v", got[2])
	}
	if got[3].Verdict != criteria.Pass {
		t.Fatalf("record 3 = %+v", got[3])
	}
	if summary.Present != 2 || summary.Absent != 1 || summary.Unknown != 0 || summary.Batches != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	res := got[1].Result()
	if res.Criterion != criteria.HasImage || res.Note != "https://objects.test/obj-1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestCheckSplitsIntoBatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{}
	cfg := fastConfig()
	cfg.BatchSize = 2
	checker := NewChecker(lookup, cfg, nil)

	_, summary, err := collect(t, checker, specimens("A", "B", "C", "D", "E"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if summary.Batches != 3 || lookup.calls != 3 {
		t.Fatalf("batches = %d calls = %d", summary.Batches, lookup.calls)
	}
	for _, ids := range lookup.batches {
		if len(ids) > 2 {
			t.Fatalf("batch too large: %v", ids)
		}
	}
}

func TestCheckBoundsBatchesInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{hold: 5 * time.Millisecond}
	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.MaxInFlight = 3
	checker := NewChecker(lookup, cfg, nil)

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i)
	}
	outcomes, summary, err := collect(t, checker, specimens(ids...))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(outcomes) != 10 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if lookup.peak > 3 {
		t.Fatalf("peak in-flight = %d, want <= 3", lookup.peak)
	}
	if summary.Waves != 4 {
		t.Fatalf("waves = %d, want 4", summary.Waves)
	}
}

func TestCheckRetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{
		assets:   map[string]string{"P1": "7"},
		failures: []error{&StatusError{Code: 502}, &StatusError{Code: 503}},
	}
	checker := NewChecker(lookup, fastConfig(), nil)

	outcomes, _, err := collect(t, checker, specimens("P1"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if lookup.calls != 3 {
		t.Fatalf("calls = %d, want 3", lookup.calls)
	}
	if outcomes[0].Verdict != criteria.Pass || outcomes[0].Attempts != 3 {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
}

func TestCheckDoesNotRetryPermanentFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{failures: []error{&StatusError{Code: 400, Status: "400 Bad Request"}}}
	checker := NewChecker(lookup, fastConfig(), nil)

	outcomes, summary, err := collect(t, checker, specimens("P1", "P2"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if lookup.calls != 1 {
		t.Fatalf("calls = %d, want 1", lookup.calls)
	}
	for _, o := range outcomes {
		if o.Verdict != criteria.Unknown || o.Err == nil {
			t.Fatalf("outcome = %+v", o)
		}
		if res := o.Result(); res.Verdict != criteria.Unknown || !strings.Contains(res.Note, "400") {
			t.Fatalf("result = %+v", res)
		}
	}
	if summary.FailedBatches != 1 || summary.Unknown != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestCheckMarksExhaustedBatchUnknown(t *testing.T) {
	defer goleak.VerifyNone(t)

	transient := &StatusError{Code: 500}
	lookup := &fakeLookup{failures: []error{transient, transient, transient, transient, transient}}
	checker := NewChecker(lookup, fastConfig(), nil)

	outcomes, _, err := collect(t, checker, specimens("P1"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if lookup.calls != 4 {
		t.Fatalf("calls = %d, want 4", lookup.calls)
	}
	if outcomes[0].Verdict != criteria.Unknown {
		t.Fatalf("verdict = %v", outcomes[0].Verdict)
	}
	if !errors.Is(outcomes[0].Err, ErrRetriesExhausted) {
		t.Fatalf("err = %v", outcomes[0].Err)
	}
}

func TestCheckFailsRecordsWithoutProcessID(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{}
	checker := NewChecker(lookup, fastConfig(), nil)
	src := &sliceSource{records: []record.Record{record.New(9, map[string]string{record.ColumnProcessID: "NA"})}}

	outcomes, _, err := collect(t, checker, src)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if lookup.calls != 0 {
		t.Fatalf("unexpected lookup calls: %d", lookup.calls)
	}
	if outcomes[0].Verdict != criteria.Fail || outcomes[0].Result().Note != "no process id" {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
}

func TestCheckTreatsPlaceholderProcessIDAsMissing(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{}
	checker := NewChecker(lookup, fastConfig(), nil)
	outcomes, _, err := collect(t, checker, specimens("None"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if lookup.calls != 0 {
		t.Fatalf("unexpected lookup calls: %d", lookup.calls)
	}
	if outcomes[0].Result().Note != "no process id" {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
}

func TestCheckBoundsRecordsWithoutProcessIDPerWave(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := fastConfig()
	cfg.BatchSize = 2
	cfg.MaxInFlight = 3
	checker := NewChecker(&fakeLookup{}, cfg, nil)

	src := &sliceSource{}
	for i := range 25 {
		src.records = append(src.records, record.New(int64(i+1), nil))
	}
	var sizes []int
	summary, err := checker.Check(context.Background(), src, func(batch []Outcome) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	for _, n := range sizes {
		if n > 6 {
			t.Fatalf("wave of %d records exceeds 6: %v", n, sizes)
		}
	}
	if summary.Records != 25 || summary.Absent != 25 || summary.Waves != 5 {
		t.Fatalf("summary = %+v, sizes %v", summary, sizes)
	}
}

func TestNewCheckerDefaultsZeroRetryPolicy(t *testing.T) {
	checker := NewChecker(&fakeLookup{}, Config{}, nil)
	if checker.cfg.Retry != DefaultConfig().Retry {
		t.Fatalf("retry = %+v, want %+v", checker.cfg.Retry, DefaultConfig().Retry)
	}
	single := NewChecker(&fakeLookup{}, Config{Retry: RetryPolicy{MaxRetries: -1}}, nil)
	if got := single.cfg.Retry.Attempts(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestCheckStopsOnCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	lookup := &fakeLookup{hold: time.Second}
	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.MaxInFlight = 2
	checker := NewChecker(lookup, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var outcomes []Outcome
	_, err := checker.Check(ctx, specimens("A", "B", "C", "D"), func(batch []Outcome) error {
		outcomes = append(outcomes, batch...)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected first wave only, got %d outcomes", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Verdict != criteria.Unknown {
			t.Fatalf("outcome = %+v", o)
		}
	}
}

func TestCheckPropagatesEmitError(t *testing.T) {
	lookup := &fakeLookup{}
	checker := NewChecker(lookup, fastConfig(), nil)
	sentinel := errors.New("disk full")
	_, err := checker.Check(context.Background(), specimens("P1"), func([]Outcome) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
}

func TestCheckAgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "BOLD-1") {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"processid":"BOLD-1","objectid":"4242"}]`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{LookupURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	checker := NewChecker(client, fastConfig(), nil)
	outcomes, _, err := collect(t, checker, specimens("BOLD-1", "BOLD-2"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	got := byRecord(outcomes)
	if got[1].URL != "https://objects.test/4242" || got[2].Verdict != criteria.Fail {
		t.Fatalf("outcomes = %+v", outcomes)
	}
}
