// Package commands implements the hlrcheck CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hlrcheck/hlr-batch/internal/app"
	"github.com/hlrcheck/hlr-batch/internal/config"
	"github.com/hlrcheck/hlr-batch/internal/telemetry"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/redact"
)

const serviceName = "hlrcheck"

// errUsage marks configuration and flag errors, which exit with 2.
var errUsage = errors.New("usage error")

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hlrcheck",
	Short: "hlrcheck looks up HLR records for batches of phone numbers through a web form.",
	Long: `hlrcheck looks up HLR records for batches of phone numbers through a web form.

Input tables are read from the input directory and one output table per input
is written to the output directory. A file whose output exists is done, so a
run can be interrupted and resumed at any time.

Settings come from built-in defaults, then --config (YAML), then HLR_*
environment variables, then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("HLR_CONFIG"), "YAML config file (env: HLR_CONFIG)")
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", redact.Secrets(err.Error()))
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}

// loadConfig loads the layered config and applies any changed flags.
func loadConfig(overrides ...func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", errUsage, err)
	}
	for _, apply := range overrides {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", errUsage, err)
	}
	return cfg, nil
}

// session bundles what every browser-backed command needs.
type session struct {
	rt      app.Runtime
	cleanup func()
}

func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	logger := newLogger()

	tel, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("open job store: %w", err)
	}

	return &session{
		rt: app.Runtime{
			Config: cfg,
			Store:  store,
			Launch: app.BrowserLauncher(cfg, logger),
			Logger: logger,
		},
		cleanup: func() {
			if err := closeStore(); err != nil {
				logger.Printf("job store close failed: error=%q", redact.Secrets(err.Error()))
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := tel.Shutdown(ctx); err != nil {
				logger.Printf("telemetry shutdown failed: error=%q", redact.Secrets(err.Error()))
			}
		},
	}, nil
}
