package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/internal/lookup"
)

var errBrowserGone = fmt.Errorf("%w: browser is closed", hlr.ErrSessionFatal)

const (
	forceEnableJS = `(sel) => {
  const el = document.querySelector(sel);
  if (!el) return false;
  el.disabled = false;
  el.removeAttribute('disabled');
  return true;
}`

	interactiveJS = `(sels) => sels.every((sel) => {
  const el = document.querySelector(sel);
  if (!el || el.disabled) return false;
  const style = window.getComputedStyle(el);
  if (style.visibility === 'hidden' || style.display === 'none') return false;
  const box = el.getBoundingClientRect();
  return box.width > 0 && box.height > 0;
})`

	textContainsAnyJS = `([sel, markers]) => {
  const el = document.querySelector(sel);
  if (!el) return false;
  const text = el.innerText || '';
  return markers.some((m) => text.includes(m));
}`
)

// Page adapts a playwright page to lookup.Page and lookup.Snapshotter.
type Page struct {
	page          playwright.Page
	context       playwright.BrowserContext
	actionTimeout time.Duration
}

var (
	_ lookup.Page        = (*Page)(nil)
	_ lookup.Snapshotter = (*Page)(nil)
)

func (p *Page) Navigate(ctx context.Context, url string, readiness lookup.Readiness, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil(readiness),
		Timeout:   millis(ctx, timeout),
	})
	if err != nil {
		return mapError(err)
	}
	if url == "about:blank" {
		return nil
	}
	html, err := p.page.Content()
	if err != nil {
		return mapError(err)
	}
	if marker, ok := DetectChallenge(html); ok {
		return fmt.Errorf("%w: %s", hlr.ErrChallenge, marker)
	}
	return nil
}

func (p *Page) EvaluateScript(ctx context.Context, js string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		out any
		err error
	)
	if arg == nil {
		out, err = p.page.Evaluate(js)
	} else {
		out, err = p.page.Evaluate(js, arg)
	}
	return out, mapError(err)
}

// ForceEnable strips the disabled state from the first match of selector. A
// missing element is not an error; the interactive wait catches it.
func (p *Page) ForceEnable(ctx context.Context, selector string) error {
	_, err := p.EvaluateScript(ctx, forceEnableJS, selector)
	return err
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(p.page.Locator(selector).Fill(value, playwright.LocatorFillOptions{
		Force:   playwright.Bool(true),
		Timeout: millis(ctx, p.actionTimeout),
	}))
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(p.page.Locator(selector).Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(true),
		Timeout: millis(ctx, p.actionTimeout),
	}))
}

func (p *Page) WaitForCondition(ctx context.Context, cond lookup.Condition, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		js  string
		arg any
	)
	switch cond.Kind {
	case lookup.ConditionInteractive:
		js, arg = interactiveJS, cond.Selectors
	case lookup.ConditionTextContainsAny:
		if len(cond.Selectors) == 0 {
			return fmt.Errorf("text condition needs a selector")
		}
		js, arg = textContainsAnyJS, []any{cond.Selectors[0], cond.Markers}
	default:
		return fmt.Errorf("unsupported condition kind %d", cond.Kind)
	}
	_, err := p.page.WaitForFunction(js, arg, playwright.PageWaitForFunctionOptions{
		Timeout: millis(ctx, timeout),
	})
	return mapError(err)
}

func (p *Page) ReadText(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.page.Locator(selector).InnerText(playwright.LocatorInnerTextOptions{
		Timeout: millis(ctx, p.actionTimeout),
	})
	return text, mapError(err)
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return mapError(err)
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	return html, mapError(err)
}

// Close closes the page and its browser context.
func (p *Page) Close() error {
	if err := p.context.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return err
	}
	return nil
}

func waitUntil(r lookup.Readiness) *playwright.WaitUntilState {
	switch r {
	case lookup.ReadinessCommit:
		return playwright.WaitUntilStateCommit
	case lookup.ReadinessLoad:
		return playwright.WaitUntilStateLoad
	case lookup.ReadinessNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

// millis converts d to playwright's millisecond timeout, clipped to ctx's
// deadline so a wait never outlives its caller.
func millis(ctx context.Context, d time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// sessionGoneMarkers are driver messages meaning the page or browser died.
var sessionGoneMarkers = []string{
	"target closed",
	"target page, context or browser has been closed",
	"browser has been closed",
	"browser has disconnected",
	"connection closed",
	"playwright connection closed",
}

// mapError tags errors that mean the session is unusable with
// hlr.ErrSessionFatal. Timeouts and other failures pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("%w: %w", hlr.ErrSessionFatal, err)
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, m := range sessionGoneMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", hlr.ErrSessionFatal, err)
		}
	}
	return err
}
