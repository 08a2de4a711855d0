package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func applyEnv(cfg *Config) error {
	var err error
	str := func(varName string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
			*dst = v
		}
	}

	str("HLR_TARGET_URL", &cfg.Lookup.TargetURL)
	str("HLR_READINESS", &cfg.Lookup.Readiness)
	str("HLR_DEBUG_DIR", &cfg.Lookup.DebugDir)
	str("HLR_INPUT_MODE", &cfg.Batch.InputMode)
	str("HLR_SUFFIX", &cfg.Batch.Suffix)
	str("HLR_INPUT_DIR", &cfg.Jobs.InputDir)
	str("HLR_OUTPUT_DIR", &cfg.Jobs.OutputDir)
	str("HLR_STORE", &cfg.Jobs.Store)
	str("HLR_STORE_PATH", &cfg.Jobs.StorePath)
	str("HLR_USER_AGENT", &cfg.Browser.UserAgent)
	str("HLR_PROXY", &cfg.Browser.Proxy)
	str("HLR_PROXY_FILE", &cfg.Proxy.File)
	str("HLR_PROXY_SOURCE_URL", &cfg.Proxy.SourceURL)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	str("OTEL_EXPORTER_OTLP_PROTOCOL", &cfg.Telemetry.Protocol)

	if cfg.Lookup.MaxAttempts, err = envInt("HLR_MAX_ATTEMPTS", cfg.Lookup.MaxAttempts); err != nil {
		return err
	}
	if cfg.Lookup.FormPollCycles, err = envInt("HLR_FORM_POLL_CYCLES", cfg.Lookup.FormPollCycles); err != nil {
		return err
	}
	if cfg.Batch.CheckpointEvery, err = envInt("HLR_CHECKPOINT_EVERY", cfg.Batch.CheckpointEvery); err != nil {
		return err
	}
	if cfg.Lookup.RateLimitRPS, err = envFloat("HLR_RATE_LIMIT_RPS", cfg.Lookup.RateLimitRPS); err != nil {
		return err
	}
	if cfg.Lookup.NavigationTimeout, err = envDuration("HLR_NAVIGATION_TIMEOUT", cfg.Lookup.NavigationTimeout); err != nil {
		return err
	}
	if cfg.Lookup.FormReadyTimeout, err = envDuration("HLR_FORM_READY_TIMEOUT", cfg.Lookup.FormReadyTimeout); err != nil {
		return err
	}
	if cfg.Lookup.ResultTimeout, err = envDuration("HLR_RESULT_TIMEOUT", cfg.Lookup.ResultTimeout); err != nil {
		return err
	}
	if cfg.Lookup.BackoffInterval, err = envDuration("HLR_BACKOFF_INTERVAL", cfg.Lookup.BackoffInterval); err != nil {
		return err
	}
	if cfg.Batch.InterRowDelay, err = envDuration("HLR_INTER_ROW_DELAY", cfg.Batch.InterRowDelay); err != nil {
		return err
	}
	if cfg.Jobs.StaleClaimAfter, err = envDuration("HLR_STALE_CLAIM_AFTER", cfg.Jobs.StaleClaimAfter); err != nil {
		return err
	}

	for varName, dst := range map[string]**bool{
		"HLR_HEADLESS":         &cfg.Browser.Headless,
		"HLR_BLOCK_ASSETS":     &cfg.Browser.BlockAssets,
		"HLR_USE_PROXY":        &cfg.Browser.UseProxy,
		"HLR_INSTALL_BROWSERS": &cfg.Browser.Install,
	} {
		v, err := envOptionalBool(varName)
		if err != nil {
			return err
		}
		if v != nil {
			*dst = v
		}
	}
	return nil
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

// envOptionalBool returns nil when varName is unset.
func envOptionalBool(varName string) (*bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return nil, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return &out, nil
}
