package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
}

// ACRCloud contains the identify endpoint and project credentials.
type ACRCloud struct {
	Host           string `toml:"host"`
	AccessKey      string `toml:"access_key"`
	AccessSecret   string `toml:"access_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scan contains window probing and reconciliation tuning.
type Scan struct {
	WindowSeconds  int    `toml:"window_seconds"`
	ScanType       string `toml:"scan_type"` // music, custom or both
	WithDuration   bool   `toml:"with_duration"`
	FilterResults  bool   `toml:"filter_results"`
	TitleThreshold int    `toml:"title_threshold"`
	// TimeThresholdMs bounds reference offset drift across a gap. Zero means one window.
	TimeThresholdMs     int64 `toml:"time_threshold_ms"`
	RoundingToleranceMs int64 `toml:"rounding_tolerance_ms"`
	SustainedMs         int64 `toml:"sustained_ms"`
	Workers             int   `toml:"workers"`
}

// Retry contains the backoff policy for identify calls.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	InitialBackoffMs int64   `toml:"initial_backoff_ms"`
	MaxBackoffMs     int64   `toml:"max_backoff_ms"`
	Multiplier       float64 `toml:"multiplier"`
}

// Cache contains the probe cache settings.
type Cache struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for acrscan.
//
// Configuration sections by subsystem:
//   - Paths: log, report and cache directories
//   - ACRCloud: identify host and credentials
//   - Scan: window length, result kinds and reconciliation thresholds
//   - Retry: identify retry policy
//   - Cache: probe response cache
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	ACRCloud ACRCloud `toml:"acrcloud"`
	Scan     Scan     `toml:"scan"`
	Retry    Retry    `toml:"retry"`
	Cache    Cache    `toml:"cache"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log, output and (when enabled) cache directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.OutputDir}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for window extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// WindowMs returns the probe window length in milliseconds.
func (c *Config) WindowMs() int64 {
	return int64(c.Scan.WindowSeconds) * 1000
}

// ACRCloudTimeout returns the identify request timeout.
func (c *Config) ACRCloudTimeout() time.Duration {
	return time.Duration(c.ACRCloud.TimeoutSeconds) * time.Second
}

// HistoryPath returns the location of the scan history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// ProbeCacheDir returns the badger directory backing the probe cache.
func (c *Config) ProbeCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "probes")
}

// HasCredentials reports whether both ACRCloud credentials are present.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.ACRCloud.AccessKey) != "" && strings.TrimSpace(c.ACRCloud.AccessSecret) != ""
}

// RequireCredentials fails when a scan cannot authenticate against ACRCloud.
func (c *Config) RequireCredentials() error {
	if c.HasCredentials() {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("acrcloud.access_key and acrcloud.access_secret are required. Set ACRCLOUD_ACCESS_KEY/ACRCLOUD_ACCESS_SECRET or edit %s (create with 'acrscan config init')", defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "acrscan")
	}
	return "~/.cache/acrscan"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML with credentials masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	masked.ACRCloud.AccessSecret = mask(masked.ACRCloud.AccessSecret)
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(masked); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return []byte(b.String()), nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
