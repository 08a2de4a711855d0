package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/hlrcheck/hlr-batch/internal/browser"
	"github.com/hlrcheck/hlr-batch/internal/config"
	"github.com/hlrcheck/hlr-batch/internal/jobs"
	"github.com/hlrcheck/hlr-batch/internal/proxy"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/redact"
)

// OpenStore builds the job status store cfg selects. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config) (jobs.Store, func() error, error) {
	switch cfg.Jobs.Store {
	case config.StoreSQLite:
		s, err := jobs.OpenSQLiteStore(ctx, cfg.Jobs.StorePath, cfg.Jobs.StaleClaimAfter)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return jobs.NewFileStore(cfg.Jobs.OutputDir, cfg.Jobs.StaleClaimAfter), func() error { return nil }, nil
	}
}

// BrowserLauncher launches Chromium per cfg, routed through the pinned proxy
// or a random entry of the proxy file when enabled.
func BrowserLauncher(cfg config.Config, logger *log.Logger) Launcher {
	return func(ctx context.Context) (PageSource, error) {
		server, err := chooseProxy(cfg, logger)
		if err != nil {
			return nil, err
		}
		b, err := browser.Launch(ctx, cfg.BrowserOptions(server), logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func chooseProxy(cfg config.Config, logger *log.Logger) (string, error) {
	if cfg.Browser.Proxy != "" {
		return cfg.Browser.Proxy, nil
	}
	if !config.Bool(cfg.Browser.UseProxy) {
		return "", nil
	}
	entries, err := proxy.Load(cfg.Proxy.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("proxy file %s not found; run `hlrcheck proxies update` first", cfg.Proxy.File)
		}
		return "", err
	}
	entry, err := proxy.Pick(entries, nil)
	if err != nil {
		return "", fmt.Errorf("proxy file %s: %w", cfg.Proxy.File, err)
	}
	if logger != nil {
		logger.Printf("proxy selected: server=%s country=%s", redact.Secrets(entry.Server()), entry.Country)
	}
	return entry.Server(), nil
}
