// Package browser drives a headless Chromium through playwright and exposes
// it as lookup pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hlrcheck/hlr-batch/internal/lookup"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/redact"
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"
	DefaultViewportWidth  = 800
	DefaultViewportHeight = 600
	DefaultActionTimeout  = 10 * time.Second
)

// launchArgs keeps Chromium lean in containers and CI runners.
var launchArgs = []string{
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-gpu",
	"--disable-notifications",
	"--disable-extensions",
	"--disable-background-networking",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-breakpad",
	"--disable-component-extensions-with-background-pages",
	"--disable-features=TranslateUI,BlinkGenPropertyTrees",
	"--disable-ipc-flooding-protection",
	"--disable-default-apps",
}

type Options struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	// BlockAssets aborts every request that is not a document or a script.
	BlockAssets bool
	// Proxy is a proxy server URL such as "http://1.2.3.4:8080". Empty means
	// direct.
	Proxy string
	// ActionTimeout bounds fills, clicks and reads.
	ActionTimeout time.Duration
	// Install downloads the Chromium build playwright expects before launch.
	Install bool
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	return o
}

// Browser is one Chromium process. Pages opened from it get their own
// browser context, so cookies and storage never leak between jobs.
type Browser struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	closed  bool
}

// Launch starts playwright and a Chromium process.
func Launch(ctx context.Context, opts Options, logger *log.Logger) (*Browser, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install chromium: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     launchArgs,
	}
	if opts.Proxy != "" {
		launch.Proxy = &playwright.Proxy{Server: opts.Proxy}
	}
	b, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %s", redact.Secrets(err.Error()))
	}
	if opts.Proxy != "" {
		logger.Printf("browser launched: headless=%t proxy=%s", opts.Headless, redact.Secrets(opts.Proxy))
	} else {
		logger.Printf("browser launched: headless=%t", opts.Headless)
	}
	return &Browser{opts: opts, logger: logger, pw: pw, browser: b}, nil
}

// NewPage opens a fresh context and page. It has the lookup.PageFactory
// signature.
func (b *Browser) NewPage(ctx context.Context) (lookup.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed || !b.browser.IsConnected() {
		return nil, fmt.Errorf("new page: %w", errBrowserGone)
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		UserAgent:         playwright.String(b.opts.UserAgent),
		BypassCSP:         playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", mapError(err))
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", mapError(err))
	}
	pg.SetDefaultTimeout(float64(b.opts.ActionTimeout.Milliseconds()))

	if b.opts.BlockAssets {
		if err := pg.Route("**/*", blockAssets); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("install request filter: %w", mapError(err))
		}
	}
	return &Page{page: pg, context: bctx, actionTimeout: b.opts.ActionTimeout}, nil
}

func blockAssets(route playwright.Route) {
	switch route.Request().ResourceType() {
	case "document", "script":
		_ = route.Continue()
	default:
		_ = route.Abort("blockedbyclient")
	}
}

// Close shuts down Chromium and the playwright driver.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var errs []error
	if err := b.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}
