package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/internal/lookup"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/core"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/redact"
)

var tracer = otel.Tracer("hlr-batch/internal/batch")

// Looker performs one lookup on a page. *lookup.Attempter satisfies it.
type Looker interface {
	Attempt(ctx context.Context, page lookup.Page, value string) (hlr.Result, error)
}

type Options struct {
	// CheckpointEvery rewrites the sink after this many rows.
	CheckpointEvery int
	// InterRowDelay is slept between rows regardless of outcome.
	InterRowDelay time.Duration
}

const (
	DefaultCheckpointEvery = 10
	DefaultInterRowDelay   = 1 * time.Second
)

func (o Options) withDefaults() Options {
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = DefaultCheckpointEvery
	}
	if o.InterRowDelay < 0 {
		o.InterRowDelay = 0
	}
	return o
}

// DefaultOptions returns the documented batch defaults.
func DefaultOptions() Options {
	return Options{CheckpointEvery: DefaultCheckpointEvery, InterRowDelay: DefaultInterRowDelay}
}

// Runner processes the rows of one input table against one page session.
type Runner struct {
	looker  Looker
	numbers *Numbers
	opts    Options
	logger  *log.Logger

	// Sleep paces rows. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner builds a Runner. A nil logger writes to stdout.
func NewRunner(looker Looker, numbers *Numbers, opts Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &Runner{
		looker:  looker,
		numbers: numbers,
		opts:    opts.withDefaults(),
		logger:  logger,
		Sleep:   sleepContext,
	}
}

// Run looks up every row in order and returns one record per row consumed.
//
// The sink is rewritten with all records so far every CheckpointEvery rows
// and once more at the end. A failing row becomes an all-empty record and the
// batch moves on; only a dead page session (hlr.ErrSessionFatal), a sink
// failure or ctx cancellation stops the batch early. In those cases the
// records completed so far are checkpointed and returned with the error.
func (r *Runner) Run(
	ctx context.Context,
	rows []hlr.InputRow,
	factory lookup.PageFactory,
	sink core.OutputAdapter[hlr.OutputRecord],
) (records []hlr.OutputRecord, err error) {
	ctx, span := tracer.Start(ctx, "batch.Run", trace.WithAttributes(attribute.Int("batch.rows", len(rows))))
	defer func() {
		span.SetAttributes(attribute.Int("batch.records", len(records)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch aborted")
		}
		span.End()
	}()

	page, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Printf("page close failed: error=%q", redact.Secrets(cerr.Error()))
		}
	}()

	start := time.Now()
	records = make([]hlr.OutputRecord, 0, len(rows))
	okRows := 0

	abort := func(cause error) ([]hlr.OutputRecord, error) {
		// Nothing to keep; an empty output file would mark the job done.
		if len(records) == 0 {
			return records, cause
		}
		if serr := sink.Store(context.WithoutCancel(ctx), records); serr != nil {
			cause = errors.Join(cause, fmt.Errorf("checkpoint: %w", serr))
		} else {
			r.logger.Printf("checkpoint saved before abort: records=%d", len(records))
		}
		return records, cause
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		res := hlr.Failed()
		value, ok := r.numbers.LookupValue(row)
		if !ok {
			r.logger.Printf("row skipped: row=%d/%d identifier=%q reason=empty", i+1, len(rows), row.Identifier)
		} else {
			r.logger.Printf("row lookup: row=%d/%d identifier=%q value=%q", i+1, len(rows), row.Identifier, value)
			out, lerr := r.lookupRow(ctx, page, value)
			switch {
			case lerr == nil:
				res = out
			case hlr.IsSessionFatal(lerr):
				r.logger.Printf("page session lost: row=%d/%d identifier=%q error=%q", i+1, len(rows), row.Identifier, redact.Secrets(lerr.Error()))
				return abort(fmt.Errorf("row %d (%s): %w", i+1, row.Identifier, lerr))
			case ctx.Err() != nil:
				return abort(ctx.Err())
			default:
				r.logger.Printf("row failed: row=%d/%d identifier=%q error=%q", i+1, len(rows), row.Identifier, redact.Secrets(lerr.Error()))
			}
		}
		if res.Succeeded {
			okRows++
		}
		records = append(records, hlr.Merge(row, res))

		if len(records)%r.opts.CheckpointEvery == 0 {
			if err := sink.Store(ctx, records); err != nil {
				return records, fmt.Errorf("checkpoint after %d rows: %w", len(records), err)
			}
			r.logger.Printf("checkpoint saved: records=%d/%d", len(records), len(rows))
		}

		if i < len(rows)-1 {
			if err := r.Sleep(ctx, r.opts.InterRowDelay); err != nil {
				return abort(err)
			}
		}
	}

	if err := sink.Store(ctx, records); err != nil {
		return records, fmt.Errorf("final write: %w", err)
	}

	elapsed := time.Since(start)
	perRecord := time.Duration(0)
	if len(records) > 0 {
		perRecord = elapsed / time.Duration(len(records))
	}
	r.logger.Printf(
		"batch complete: records=%d ok=%d failed=%d duration=%s perRecord=%s",
		len(records),
		okRows,
		len(records)-okRows,
		elapsed.Round(time.Millisecond),
		perRecord.Round(time.Millisecond),
	)
	return records, nil
}

func (r *Runner) lookupRow(ctx context.Context, page lookup.Page, value string) (res hlr.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = hlr.Failed(), fmt.Errorf("lookup panicked: %v", p)
		}
	}()
	return r.looker.Attempt(ctx, page, value)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}
