// Package config loads hlrcheck settings: built-in defaults, then an optional
// YAML file, then environment variables. CLI flags are applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/hlrcheck/hlr-batch/internal/batch"
	"github.com/hlrcheck/hlr-batch/internal/browser"
	"github.com/hlrcheck/hlr-batch/internal/lookup"
	"github.com/hlrcheck/hlr-batch/internal/telemetry"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/schema"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	Lookup    Lookup           `yaml:"lookup"`
	Batch     Batch            `yaml:"batch"`
	Jobs      Jobs             `yaml:"jobs"`
	Browser   Browser          `yaml:"browser"`
	Proxy     Proxy            `yaml:"proxy"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

type Lookup struct {
	TargetURL         string        `yaml:"target_url"`
	InputSelector     string        `yaml:"input_selector"`
	SubmitSelector    string        `yaml:"submit_selector"`
	ResultSelector    string        `yaml:"result_selector"`
	Readiness         string        `yaml:"readiness"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	FormReadyTimeout  time.Duration `yaml:"form_ready_timeout"`
	FormPollCycles    int           `yaml:"form_poll_cycles"`
	ResultTimeout     time.Duration `yaml:"result_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInterval   time.Duration `yaml:"backoff_interval"`
	RateLimitRPS      float64       `yaml:"rate_limit_rps"`
	DebugDir          string        `yaml:"debug_dir"`
}

type Batch struct {
	InputMode       string        `yaml:"input_mode"`
	Suffix          string        `yaml:"suffix"`
	CheckpointEvery int           `yaml:"checkpoint_every"`
	InterRowDelay   time.Duration `yaml:"inter_row_delay"`
}

type Jobs struct {
	InputDir        string        `yaml:"input_dir"`
	OutputDir       string        `yaml:"output_dir"`
	Store           string        `yaml:"store"`
	StorePath       string        `yaml:"store_path"`
	StaleClaimAfter time.Duration `yaml:"stale_claim_after"`
}

// Browser bools are pointers so a file can turn a default off.
type Browser struct {
	Headless    *bool  `yaml:"headless"`
	BlockAssets *bool  `yaml:"block_assets"`
	UseProxy    *bool  `yaml:"use_proxy"`
	Install     *bool  `yaml:"install"`
	UserAgent   string `yaml:"user_agent"`
	// Proxy pins one proxy server and wins over the proxy file.
	Proxy string `yaml:"proxy"`
}

type Proxy struct {
	SourceURL string `yaml:"source_url"`
	File      string `yaml:"file"`
}

// Defaults returns the documented settings.
func Defaults() Config {
	lo := lookup.DefaultOptions()
	bo := batch.DefaultOptions()
	return Config{
		Lookup: Lookup{
			TargetURL:         lo.TargetURL,
			InputSelector:     lo.InputSelector,
			SubmitSelector:    lo.SubmitSelector,
			ResultSelector:    lo.ResultSelector,
			Readiness:         string(lo.Readiness),
			NavigationTimeout: lo.NavigationTimeout,
			FormReadyTimeout:  lo.FormReadyTimeout,
			FormPollCycles:    lo.FormPollCycles,
			ResultTimeout:     lo.ResultTimeout,
			MaxAttempts:       lo.MaxAttempts,
			BackoffInterval:   lo.BackoffInterval,
			DebugDir:          "debug",
		},
		Batch: Batch{
			InputMode:       string(schema.InputModeAuto),
			Suffix:          string(batch.SuffixRandom),
			CheckpointEvery: bo.CheckpointEvery,
			InterRowDelay:   bo.InterRowDelay,
		},
		Jobs: Jobs{
			InputDir:        "raw",
			OutputDir:       "raw_checker",
			Store:           StoreFile,
			StorePath:       "hlrcheck.db",
			StaleClaimAfter: 2 * time.Hour,
		},
		Browser: Browser{
			Headless:    ptr(true),
			BlockAssets: ptr(true),
			UseProxy:    ptr(false),
			Install:     ptr(false),
			UserAgent:   browser.DefaultUserAgent,
		},
		Proxy: Proxy{
			File: "proxies.json",
		},
	}
}

// Load builds the effective config. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		fileCfg, err := Parse(b)
		if err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return Config{}, fmt.Errorf("merge config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Lookup.TargetURL == "" {
		errs = append(errs, errors.New("lookup.target_url is required"))
	}
	switch lookup.Readiness(c.Lookup.Readiness) {
	case lookup.ReadinessCommit, lookup.ReadinessDOMContentLoaded, lookup.ReadinessLoad, lookup.ReadinessNetworkIdle:
	default:
		errs = append(errs, fmt.Errorf("lookup.readiness %q is not one of commit, domcontentloaded, load, networkidle", c.Lookup.Readiness))
	}
	if c.Lookup.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("lookup.max_attempts must be >= 1, got %d", c.Lookup.MaxAttempts))
	}
	if c.Lookup.FormPollCycles < 1 {
		errs = append(errs, fmt.Errorf("lookup.form_poll_cycles must be >= 1, got %d", c.Lookup.FormPollCycles))
	}
	if c.Lookup.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("lookup.rate_limit_rps must be >= 0, got %v", c.Lookup.RateLimitRPS))
	}
	if c.Batch.CheckpointEvery < 1 {
		errs = append(errs, fmt.Errorf("batch.checkpoint_every must be >= 1, got %d", c.Batch.CheckpointEvery))
	}
	if c.Jobs.Store != StoreFile && c.Jobs.Store != StoreSQLite {
		errs = append(errs, fmt.Errorf("jobs.store must be %q or %q, got %q", StoreFile, StoreSQLite, c.Jobs.Store))
	}
	return errors.Join(errs...)
}

func (c Config) LookupOptions() lookup.Options {
	return lookup.Options{
		TargetURL:         c.Lookup.TargetURL,
		InputSelector:     c.Lookup.InputSelector,
		SubmitSelector:    c.Lookup.SubmitSelector,
		ResultSelector:    c.Lookup.ResultSelector,
		Readiness:         lookup.Readiness(c.Lookup.Readiness),
		NavigationTimeout: c.Lookup.NavigationTimeout,
		FormReadyTimeout:  c.Lookup.FormReadyTimeout,
		FormPollCycles:    c.Lookup.FormPollCycles,
		ResultTimeout:     c.Lookup.ResultTimeout,
		MaxAttempts:       c.Lookup.MaxAttempts,
		BackoffInterval:   c.Lookup.BackoffInterval,
		RateLimitRPS:      c.Lookup.RateLimitRPS,
		DebugDir:          c.Lookup.DebugDir,
	}
}

func (c Config) BatchOptions() batch.Options {
	return batch.Options{
		CheckpointEvery: c.Batch.CheckpointEvery,
		InterRowDelay:   c.Batch.InterRowDelay,
	}
}

func (c Config) InputMode() schema.InputMode {
	return schema.NormalizeInputMode(c.Batch.InputMode)
}

func (c Config) SuffixPolicy() batch.SuffixPolicy {
	return batch.NormalizeSuffixPolicy(c.Batch.Suffix)
}

// BrowserOptions returns launch options routed through proxyServer, which may
// be empty.
func (c Config) BrowserOptions(proxyServer string) browser.Options {
	return browser.Options{
		Headless:    Bool(c.Browser.Headless),
		UserAgent:   c.Browser.UserAgent,
		BlockAssets: Bool(c.Browser.BlockAssets),
		Proxy:       proxyServer,
		Install:     Bool(c.Browser.Install),
	}
}

// Bool dereferences an optional flag, treating nil as false.
func Bool(b *bool) bool {
	return b != nil && *b
}

func ptr[T any](v T) *T {
	return &v
}
