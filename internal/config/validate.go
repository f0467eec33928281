package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable. Credentials are checked
// separately by RequireCredentials so offline commands work without them.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	if err := ensurePositiveMap(map[string]int{
		"acrcloud.timeout_seconds": c.ACRCloud.TimeoutSeconds,
		"scan.window_seconds":      c.Scan.WindowSeconds,
		"scan.workers":             c.Scan.Workers,
	}); err != nil {
		return err
	}
	switch c.Scan.ScanType {
	case "music", "custom", "both":
	default:
		return fmt.Errorf("scan.scan_type: unsupported value %q (want music, custom or both)", c.Scan.ScanType)
	}
	if c.Scan.FilterResults && !c.Scan.WithDuration {
		return errors.New("scan.filter_results requires scan.with_duration")
	}
	if c.Scan.TitleThreshold < 0 || c.Scan.TitleThreshold > 100 {
		return errors.New("scan.title_threshold must be between 0 and 100")
	}
	if c.Scan.TimeThresholdMs <= 0 {
		return errors.New("scan.time_threshold_ms must be positive")
	}
	if c.Scan.RoundingToleranceMs < 0 || c.Scan.RoundingToleranceMs > 1000 {
		return errors.New("scan.rounding_tolerance_ms must be between 0 and 1000")
	}
	if c.Scan.SustainedMs < 0 {
		return errors.New("scan.sustained_ms must not be negative")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialBackoffMs < 0 || c.Retry.MaxBackoffMs < 0 {
		return errors.New("retry backoff values must not be negative")
	}
	if c.Retry.MaxBackoffMs > 0 && c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return errors.New("retry.max_backoff_ms must be at least retry.initial_backoff_ms")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
