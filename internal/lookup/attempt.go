package lookup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/redact"
)

var tracer = otel.Tracer("hlr-batch/internal/lookup")

const blankURL = "about:blank"

// Attempter drives one page through the fill/submit/wait/parse protocol.
type Attempter struct {
	opts    Options
	limiter *rate.Limiter
	logger  *log.Logger

	// Sleep waits between attempts. Tests replace it to observe backoff.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New builds an Attempter. A nil logger writes to stdout.
func New(opts Options, logger *log.Logger) *Attempter {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &Attempter{
		opts:    opts,
		limiter: limiter,
		logger:  logger,
		Sleep:   sleepContext,
	}
}

// Options returns the effective options after defaults.
func (a *Attempter) Options() Options {
	return a.opts
}

// Attempt looks up one value.
//
// Failures inside the protocol are retried up to MaxAttempts times with a
// fixed backoff; once exhausted the terminal failure result is returned with
// a nil error. A non-nil error is returned only when the page session is
// unusable (wrapping hlr.ErrSessionFatal) or ctx is done.
func (a *Attempter) Attempt(ctx context.Context, page Page, value string) (hlr.Result, error) {
	ctx, span := tracer.Start(ctx, "lookup.Attempt", trace.WithAttributes(
		attribute.String("hlr.value", value),
		attribute.Int("hlr.max_attempts", a.opts.MaxAttempts),
	))
	defer span.End()

	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return hlr.Failed(), err
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return hlr.Failed(), err
			}
		}

		res, err := a.once(ctx, page, value, attempt)
		if err == nil {
			span.SetAttributes(
				attribute.Int("hlr.attempts", attempt),
				attribute.Bool("hlr.succeeded", res.Succeeded),
			)
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return hlr.Failed(), ctxErr
		}
		if hlr.IsSessionFatal(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session fatal")
			return hlr.Failed(), err
		}

		a.logger.Printf(
			"lookup attempt failed: value=%q attempt=%d/%d error=%q",
			value,
			attempt,
			a.opts.MaxAttempts,
			redact.Secrets(err.Error()),
		)
		if attempt == a.opts.MaxAttempts {
			break
		}
		if err := a.Sleep(ctx, a.opts.BackoffInterval); err != nil {
			return hlr.Failed(), err
		}
	}

	span.SetAttributes(attribute.Int("hlr.attempts", a.opts.MaxAttempts))
	span.SetStatus(codes.Error, "attempts exhausted")
	a.saveDebug(ctx, page, value)
	return hlr.Failed(), nil
}

func (a *Attempter) once(ctx context.Context, page Page, value string, attempt int) (hlr.Result, error) {
	fail := func(step hlr.Step, err error) (hlr.Result, error) {
		return hlr.Result{}, &hlr.StepError{Step: step, Attempt: attempt, Err: err}
	}

	if err := a.reset(ctx, page); err != nil {
		return fail(hlr.StepReset, err)
	}
	if err := a.unlock(ctx, page); err != nil {
		return fail(hlr.StepUnlock, err)
	}
	if err := page.Fill(ctx, a.opts.InputSelector, value); err != nil {
		return fail(hlr.StepSubmit, err)
	}
	if err := page.Click(ctx, a.opts.SubmitSelector); err != nil {
		return fail(hlr.StepSubmit, err)
	}

	// Presence alone is not enough: the container shows up empty while loading.
	ready := TextContainsAny(a.opts.ResultSelector, hlr.OperatorLabel, hlr.ErrorMarker)
	if err := page.WaitForCondition(ctx, ready, a.opts.ResultTimeout); err != nil {
		return fail(hlr.StepAwait, classify(hlr.ErrResultTimeout, err))
	}

	text, err := page.ReadText(ctx, a.opts.ResultSelector)
	if err != nil {
		return fail(hlr.StepExtract, err)
	}
	return hlr.ResultFromText(text), nil
}

// reset clears any half-filled form state before loading the target.
func (a *Attempter) reset(ctx context.Context, page Page) error {
	if err := page.Navigate(ctx, blankURL, ReadinessCommit, a.opts.NavigationTimeout); err != nil {
		return classify(hlr.ErrNavigationTimeout, err)
	}
	if err := page.Navigate(ctx, a.opts.TargetURL, a.opts.Readiness, a.opts.NavigationTimeout); err != nil {
		return classify(hlr.ErrNavigationTimeout, err)
	}
	return nil
}

// unlock force-enables the form controls and polls until they are interactive.
// One reload is allowed before giving up.
func (a *Attempter) unlock(ctx context.Context, page Page) error {
	cycle := a.opts.FormReadyTimeout / time.Duration(a.opts.FormPollCycles)
	var lastErr error
	for round := 0; round < 2; round++ {
		if round > 0 {
			if err := page.Navigate(ctx, a.opts.TargetURL, a.opts.Readiness, a.opts.NavigationTimeout); err != nil {
				return classify(hlr.ErrNavigationTimeout, err)
			}
		}
		for c := 0; c < a.opts.FormPollCycles; c++ {
			err := a.tryUnlock(ctx, page, cycle)
			if err == nil {
				return nil
			}
			if hlr.IsSessionFatal(err) || ctx.Err() != nil {
				return err
			}
			lastErr = err
		}
	}
	return classify(hlr.ErrFormNotInteractive, lastErr)
}

func (a *Attempter) tryUnlock(ctx context.Context, page Page, timeout time.Duration) error {
	if err := page.ForceEnable(ctx, a.opts.InputSelector); err != nil {
		return err
	}
	if err := page.ForceEnable(ctx, a.opts.SubmitSelector); err != nil {
		return err
	}
	return page.WaitForCondition(ctx, Interactive(a.opts.InputSelector, a.opts.SubmitSelector), timeout)
}

// classify tags err with sentinel unless it already carries a more specific kind.
func classify(sentinel error, err error) error {
	if err == nil {
		return fmt.Errorf("%w", sentinel)
	}
	if errors.Is(err, sentinel) ||
		errors.Is(err, hlr.ErrSessionFatal) ||
		errors.Is(err, hlr.ErrChallenge) ||
		errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_+-]+`)

func (a *Attempter) saveDebug(ctx context.Context, page Page, value string) {
	if a.opts.DebugDir == "" {
		return
	}
	snap, ok := page.(Snapshotter)
	if !ok {
		return
	}
	if err := os.MkdirAll(a.opts.DebugDir, 0o755); err != nil {
		a.logger.Printf("debug dump skipped: dir=%s error=%q", a.opts.DebugDir, err.Error())
		return
	}
	base := filepath.Join(a.opts.DebugDir, fmt.Sprintf("%s-%s",
		unsafeFileChars.ReplaceAllString(value, "_"),
		time.Now().UTC().Format("20060102T150405Z"),
	))
	if err := snap.Screenshot(ctx, base+".png"); err != nil {
		a.logger.Printf("debug screenshot failed: value=%q error=%q", value, redact.Secrets(err.Error()))
	}
	html, err := snap.Content(ctx)
	if err != nil {
		a.logger.Printf("debug content failed: value=%q error=%q", value, redact.Secrets(err.Error()))
		return
	}
	if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		a.logger.Printf("debug content write failed: value=%q error=%q", value, err.Error())
	}
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
