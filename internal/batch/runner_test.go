package batch_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hlrcheck/hlr-batch/internal/batch"
	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/internal/lookup"
	"github.com/hlrcheck/hlr-batch/internal/lookup/lookuptest"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/core"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/schema"
)

type recordingSink struct {
	mu     sync.Mutex
	writes [][]hlr.OutputRecord
	err    error
}

func (s *recordingSink) Store(_ context.Context, rows []hlr.OutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]hlr.OutputRecord, len(rows))
	copy(cp, rows)
	s.writes = append(s.writes, cp)
	return s.err
}

func (s *recordingSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.writes))
	for _, w := range s.writes {
		out = append(out, len(w))
	}
	return out
}

func (s *recordingSink) last() []hlr.OutputRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return nil
	}
	return s.writes[len(s.writes)-1]
}

var _ core.OutputAdapter[hlr.OutputRecord] = (*recordingSink)(nil)

type lookerFunc func(ctx context.Context, page lookup.Page, value string) (hlr.Result, error)

func (f lookerFunc) Attempt(ctx context.Context, page lookup.Page, value string) (hlr.Result, error) {
	return f(ctx, page, value)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newRunner(t *testing.T, looker batch.Looker, mode schema.InputMode) (*batch.Runner, *[]time.Duration, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	r := batch.NewRunner(looker, batch.NewNumbers(mode, batch.SuffixFixed, nil), batch.DefaultOptions(), log.New(&buf, "", 0))
	var sleeps []time.Duration
	r.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return r, &sleeps, &buf
}

func newAttempter() *lookup.Attempter {
	a := lookup.New(lookup.Options{}, log.New(&bytes.Buffer{}, "", 0))
	a.Sleep = noSleep
	return a
}

func prefixRows(n int) []hlr.InputRow {
	rows := make([]hlr.InputRow, n)
	for i := range rows {
		rows[i] = hlr.InputRow{Identifier: fmt.Sprintf("8%02d", i+1), City: "City"}
	}
	return rows
}

func TestRun_JakartaScenario(t *testing.T) {
	t.Parallel()

	page := lookuptest.Fixed("Operator: Telkomsel\nHLR: Jakarta")
	r, sleeps, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	sink := &recordingSink{}
	rows := []hlr.InputRow{
		{Identifier: "812", City: "Jakarta", SimCard: "simPATI", ProviderHint: "Telkomsel"},
		{Identifier: "813", City: "Jakarta", SimCard: "simPATI", ProviderHint: "Telkomsel"},
	}

	got, err := r.Run(context.Background(), rows, page.Factory(), sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provider, location := "Telkomsel", "Jakarta"
	res := hlr.Result{
		Provider:     &provider,
		LocationCode: &location,
		RawText:      "Operator: Telkomsel\nHLR: Jakarta",
		Succeeded:    true,
	}
	want := []hlr.OutputRecord{hlr.Merge(rows[0], res), hlr.Merge(rows[1], res)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sink.last()); diff != "" {
		t.Fatalf("sink mismatch (-want +got):\n%s", diff)
	}
	if page.Submits("08120000000") != 1 || page.Submits("08130000000") != 1 {
		t.Fatalf("unexpected submits: %v", page.Calls())
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != batch.DefaultInterRowDelay {
		t.Fatalf("expected one inter-row delay, got %v", *sleeps)
	}
	if page.CloseCount() != 1 {
		t.Fatalf("expected page closed once, got %d", page.CloseCount())
	}
}

func TestRun_AlwaysTimeout(t *testing.T) {
	t.Parallel()

	page := lookuptest.New(func(string) (string, error) { return "", nil })
	r, _, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	sink := &recordingSink{}
	rows := prefixRows(3)

	got, err := r.Run(context.Background(), rows, page.Factory(), sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d records, got %d", len(rows), len(got))
	}
	for i, rec := range got {
		if rec.Result.Succeeded || rec.Result.Provider != nil || rec.Result.LocationCode != nil || rec.Result.RawText != "" {
			t.Fatalf("row %d: expected terminal failure, got %#v", i, rec.Result)
		}
		if rec.Input != rows[i] {
			t.Fatalf("row %d: input not preserved: %#v", i, rec.Input)
		}
	}
	if page.TotalSubmits() != 3*len(rows) {
		t.Fatalf("expected %d submits, got %d", 3*len(rows), page.TotalSubmits())
	}
}

func TestRun_CheckpointsAreMonotonic(t *testing.T) {
	t.Parallel()

	page := lookuptest.Fixed("Operator: XL")
	r, _, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	sink := &recordingSink{}

	got, err := r.Run(context.Background(), prefixRows(35), page.Factory(), sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 35 {
		t.Fatalf("expected 35 records, got %d", len(got))
	}
	if diff := cmp.Diff([]int{10, 20, 30, 35}, sink.sizes()); diff != "" {
		t.Fatalf("checkpoint sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ExactMultipleWritesFinalToo(t *testing.T) {
	t.Parallel()

	page := lookuptest.Fixed("Operator: XL")
	r, _, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	sink := &recordingSink{}

	if _, err := r.Run(context.Background(), prefixRows(20), page.Factory(), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{10, 20, 20}, sink.sizes()); diff != "" {
		t.Fatalf("checkpoint sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_EmptyInputWritesHeaderOnlyTable(t *testing.T) {
	t.Parallel()

	page := lookuptest.Fixed("Operator: XL")
	r, sleeps, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	sink := &recordingSink{}

	got, err := r.Run(context.Background(), nil, page.Factory(), sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || len(*sleeps) != 0 {
		t.Fatalf("expected nothing processed, got records=%d sleeps=%d", len(got), len(*sleeps))
	}
	if diff := cmp.Diff([]int{0}, sink.sizes()); diff != "" {
		t.Fatalf("expected one empty write (-want +got):\n%s", diff)
	}
}

func TestRun_EmptyIdentifierSkipsLookup(t *testing.T) {
	t.Parallel()

	var looked []string
	looker := lookerFunc(func(_ context.Context, _ lookup.Page, value string) (hlr.Result, error) {
		looked = append(looked, value)
		return hlr.ResultFromText("Operator: XL"), nil
	})
	page := lookuptest.Fixed("")
	r, _, buf := newRunner(t, looker, schema.InputModePrefix)

	rows := []hlr.InputRow{{Identifier: ""}, {Identifier: "817"}}
	got, err := r.Run(context.Background(), rows, page.Factory(), &recordingSink{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Result.Succeeded || !got[1].Result.Succeeded {
		t.Fatalf("unexpected records: %#v", got)
	}
	if diff := cmp.Diff([]string{"08170000000"}, looked); diff != "" {
		t.Fatalf("lookups mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "reason=empty") {
		t.Fatalf("expected skip log, got %q", buf.String())
	}
}

func TestRun_PanicBecomesFailedRow(t *testing.T) {
	t.Parallel()

	looker := lookerFunc(func(_ context.Context, _ lookup.Page, value string) (hlr.Result, error) {
		if value == "08010000000" {
			panic("boom")
		}
		return hlr.ResultFromText("Operator: XL"), nil
	})
	page := lookuptest.Fixed("")
	r, _, buf := newRunner(t, looker, schema.InputModePrefix)

	got, err := r.Run(context.Background(), prefixRows(2), page.Factory(), &recordingSink{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Result.Succeeded || !got[1].Result.Succeeded {
		t.Fatalf("unexpected records: %#v", got)
	}
	if !strings.Contains(buf.String(), "lookup panicked: boom") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}

func TestRun_SessionFatalAbortsWithCheckpoint(t *testing.T) {
	t.Parallel()

	calls := 0
	looker := lookerFunc(func(context.Context, lookup.Page, string) (hlr.Result, error) {
		calls++
		if calls == 3 {
			return hlr.Failed(), fmt.Errorf("%w: browser crashed", hlr.ErrSessionFatal)
		}
		return hlr.ResultFromText("Operator: XL"), nil
	})
	page := lookuptest.Fixed("")
	r, _, _ := newRunner(t, looker, schema.InputModePrefix)
	sink := &recordingSink{}

	got, err := r.Run(context.Background(), prefixRows(5), page.Factory(), sink)
	if !errors.Is(err, hlr.ErrSessionFatal) {
		t.Fatalf("expected session fatal error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 completed records, got %d", len(got))
	}
	if diff := cmp.Diff([]int{2}, sink.sizes()); diff != "" {
		t.Fatalf("expected a checkpoint of completed rows (-want +got):\n%s", diff)
	}
	if calls != 3 {
		t.Fatalf("expected batch to stop at row 3, got %d lookups", calls)
	}
}

func TestRun_CanceledDuringDelayCheckpoints(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	page := lookuptest.Fixed("Operator: XL")
	r, _, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	r.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	sink := &recordingSink{}

	got, err := r.Run(ctx, prefixRows(4), page.Factory(), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if diff := cmp.Diff([]int{1}, sink.sizes()); diff != "" {
		t.Fatalf("checkpoint sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SinkFailureStopsBatch(t *testing.T) {
	t.Parallel()

	page := lookuptest.Fixed("Operator: XL")
	r, _, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	sink := &recordingSink{err: errors.New("disk full")}

	got, err := r.Run(context.Background(), prefixRows(12), page.Factory(), sink)
	if err == nil || !strings.Contains(err.Error(), "checkpoint after 10 rows") {
		t.Fatalf("expected checkpoint error, got %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 records, got %d", len(got))
	}
}

func TestRun_FactoryError(t *testing.T) {
	t.Parallel()

	r, _, _ := newRunner(t, newAttempter(), schema.InputModePrefix)
	factory := func(context.Context) (lookup.Page, error) { return nil, errors.New("no browser") }

	if _, err := r.Run(context.Background(), prefixRows(1), factory, &recordingSink{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRun_SessionFatalOnFirstRowWritesNothing(t *testing.T) {
	t.Parallel()

	looker := lookerFunc(func(context.Context, lookup.Page, string) (hlr.Result, error) {
		return hlr.Failed(), fmt.Errorf("%w: page crashed", hlr.ErrSessionFatal)
	})
	r, _, _ := newRunner(t, looker, schema.InputModePrefix)
	sink := &recordingSink{}

	got, err := r.Run(context.Background(), prefixRows(3), lookuptest.Fixed("").Factory(), sink)
	if !errors.Is(err, hlr.ErrSessionFatal) {
		t.Fatalf("expected session fatal error, got %v", err)
	}
	if len(got) != 0 || len(sink.sizes()) != 0 {
		t.Fatalf("expected no records and no writes, got %d records, writes %v", len(got), sink.sizes())
	}
}
