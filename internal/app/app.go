// Package app wires config, job selection, the browser and the batch runner
// into the run modes the CLI exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hlrcheck/hlr-batch/internal/batch"
	"github.com/hlrcheck/hlr-batch/internal/config"
	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/internal/jobs"
	"github.com/hlrcheck/hlr-batch/internal/lookup"
	localio "github.com/hlrcheck/hlr-batch/pkg/pipeline/io/local"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/redact"
)

var tracer = otel.Tracer("hlr-batch/internal/app")

// PageSource opens lookup pages. *browser.Browser satisfies it.
type PageSource interface {
	NewPage(ctx context.Context) (lookup.Page, error)
	Close() error
}

// Launcher starts a PageSource for one run.
type Launcher func(ctx context.Context) (PageSource, error)

// Runtime is everything a run needs.
type Runtime struct {
	Config config.Config
	Store  jobs.Store
	Launch Launcher
	// Logger defaults to stdout.
	Logger *log.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// JobResult is the outcome of one job in a run.
type JobResult struct {
	Job     jobs.Job
	Records int
	OK      int
	Skipped bool
	Err     error
}

type Summary struct {
	RunID string
	Jobs  []JobResult
}

// Err joins the errors of every failed job.
func (s Summary) Err() error {
	var errs []error
	for _, j := range s.Jobs {
		if j.Err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.Job.Name, j.Err))
		}
	}
	return errors.Join(errs...)
}

type run struct {
	rt        Runtime
	id        string
	logger    *log.Logger
	attempter *lookup.Attempter
	start     time.Time
}

func newRun(rt Runtime) *run {
	base := rt.Logger
	if base == nil {
		base = log.New(os.Stdout, "", log.LstdFlags)
	}
	id := uuid.NewString()
	// Component log lines carry the run id too.
	logger := log.New(base.Writer(), "run="+id+" ", base.Flags()|log.Lmsgprefix)
	return &run{
		rt:        rt,
		id:        id,
		logger:    logger,
		attempter: lookup.New(rt.Config.LookupOptions(), logger),
		start:     time.Now(),
	}
}

func (r *run) logf(format string, args ...any) {
	r.logger.Printf(format, args...)
}

func (r *run) selector() *jobs.Selector {
	return &jobs.Selector{
		InputDir:  r.rt.Config.Jobs.InputDir,
		OutputDir: r.rt.Config.Jobs.OutputDir,
		Store:     r.rt.Store,
		Now:       r.rt.Now,
	}
}

// RunAll processes every pending job in name order with one browser.
func RunAll(ctx context.Context, rt Runtime) (Summary, error) {
	r := newRun(rt)
	summary := Summary{RunID: r.id}

	pending, err := r.selector().SelectAll(ctx)
	if err != nil {
		return summary, err
	}
	r.logf("run start: mode=all pending=%d inputDir=%s outputDir=%s", len(pending), rt.Config.Jobs.InputDir, rt.Config.Jobs.OutputDir)
	if len(pending) == 0 {
		r.logf("no pending jobs")
		return summary, nil
	}

	src, err := rt.Launch(ctx)
	if err != nil {
		return summary, fmt.Errorf("launch browser: %w", err)
	}
	defer func() { r.closeSource(src) }()

	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res := r.runJob(ctx, job, src)
		summary.Jobs = append(summary.Jobs, res)

		if errors.Is(res.Err, hlr.ErrSessionFatal) {
			r.logf("browser session lost, relaunching: job=%s", job.Name)
			r.closeSource(src)
			if src, err = rt.Launch(ctx); err != nil {
				src = nil
				return summary, fmt.Errorf("relaunch browser: %w", err)
			}
		}
	}
	r.logSummary(summary)
	return summary, summary.Err()
}

// RunScheduled processes the single pending job picked by the current minute.
func RunScheduled(ctx context.Context, rt Runtime) (Summary, error) {
	r := newRun(rt)
	summary := Summary{RunID: r.id}

	job, ok, err := r.selector().SelectScheduled(ctx)
	if err != nil {
		return summary, err
	}
	if !ok {
		r.logf("run start: mode=scheduled no pending jobs inputDir=%s", rt.Config.Jobs.InputDir)
		return summary, nil
	}
	r.logf("run start: mode=scheduled selected=%s", job.Name)

	src, err := rt.Launch(ctx)
	if err != nil {
		return summary, fmt.Errorf("launch browser: %w", err)
	}
	defer r.closeSource(src)

	summary.Jobs = append(summary.Jobs, r.runJob(ctx, job, src))
	r.logSummary(summary)
	return summary, summary.Err()
}

// CheckOne looks up a single number verbatim.
func CheckOne(ctx context.Context, rt Runtime, msisdn string) (hlr.Result, error) {
	r := newRun(rt)
	r.logf("check start: msisdn=%q target=%s", msisdn, rt.Config.Lookup.TargetURL)

	src, err := rt.Launch(ctx)
	if err != nil {
		return hlr.Failed(), fmt.Errorf("launch browser: %w", err)
	}
	defer r.closeSource(src)

	page, err := src.NewPage(ctx)
	if err != nil {
		return hlr.Failed(), fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logf("page close failed: error=%q", redact.Secrets(err.Error()))
		}
	}()

	start := time.Now()
	res, err := r.attempter.Attempt(ctx, page, msisdn)
	if err != nil {
		return res, err
	}
	r.logf(
		"check complete: msisdn=%q succeeded=%t provider=%q hlr=%q duration=%s",
		msisdn,
		res.Succeeded,
		hlr.Value(res.Provider),
		hlr.Value(res.LocationCode),
		time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func (r *run) runJob(ctx context.Context, job jobs.Job, src PageSource) (res JobResult) {
	res.Job = job
	ctx, span := tracer.Start(ctx, "app.runJob", trace.WithAttributes(
		attribute.String("job.name", job.Name),
		attribute.String("run.id", r.id),
	))
	defer func() {
		span.SetAttributes(attribute.Int("job.records", res.Records), attribute.Bool("job.skipped", res.Skipped))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "job failed")
		}
		span.End()
	}()

	claimed, err := r.rt.Store.Claim(ctx, job)
	if err != nil {
		res.Err = fmt.Errorf("claim: %w", err)
		return res
	}
	if !claimed {
		r.logf("job skipped: job=%s reason=claimed-or-done", job.Name)
		res.Skipped = true
		return res
	}

	jobStart := time.Now()
	r.logf("job start: job=%s input=%s output=%s", job.Name, job.InputPath, job.OutputPath)

	fail := func(err error) JobResult {
		res.Err = err
		if ferr := r.rt.Store.Fail(context.WithoutCancel(ctx), job, err); ferr != nil {
			r.logf("job status update failed: job=%s error=%q", job.Name, redact.Secrets(ferr.Error()))
		}
		r.logf("job failed: job=%s records=%d error=%q", job.Name, res.Records, redact.Secrets(err.Error()))
		return res
	}

	rows, mode, err := readInput(job.InputPath, r.rt.Config.InputMode())
	if err != nil {
		return fail(err)
	}
	r.logf("job input loaded: job=%s rows=%d mode=%s suffix=%s", job.Name, len(rows), mode, r.rt.Config.SuffixPolicy())

	runner := batch.NewRunner(
		r.attempter,
		batch.NewNumbers(mode, r.rt.Config.SuffixPolicy(), nil),
		r.rt.Config.BatchOptions(),
		r.logger,
	)
	records, err := runner.Run(ctx, rows, src.NewPage, localio.NewFileSink(job.OutputPath))
	res.Records = len(records)
	for _, rec := range records {
		if rec.Result.Succeeded {
			res.OK++
		}
	}
	if err != nil {
		return fail(err)
	}
	if err := r.rt.Store.Complete(ctx, job, len(records)); err != nil {
		r.logf("job status update failed: job=%s error=%q", job.Name, redact.Secrets(err.Error()))
	}
	r.logf(
		"job complete: job=%s records=%d ok=%d failed=%d duration=%s",
		job.Name,
		res.Records,
		res.OK,
		res.Records-res.OK,
		time.Since(jobStart).Round(time.Millisecond),
	)
	return res
}

func (r *run) closeSource(src PageSource) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		r.logf("browser close failed: error=%q", redact.Secrets(err.Error()))
	}
}

func (r *run) logSummary(s Summary) {
	var done, skipped, failed, records int
	for _, j := range s.Jobs {
		switch {
		case j.Err != nil:
			failed++
		case j.Skipped:
			skipped++
		default:
			done++
		}
		records += j.Records
	}
	r.logf(
		"run complete: jobs=%d done=%d skipped=%d failed=%d records=%d totalDuration=%s",
		len(s.Jobs),
		done,
		skipped,
		failed,
		records,
		time.Since(r.start).Round(time.Millisecond),
	)
}
