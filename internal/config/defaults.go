package config

const (
	defaultConfigPath          = "~/.config/acrscan/config.toml"
	projectConfigName          = "acrscan.toml"
	defaultLogDir              = "~/.local/share/acrscan/logs"
	defaultOutputDir           = "."
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultACRCloudHost        = "identify-eu-west-1.acrcloud.com"
	defaultACRCloudTimeout     = 10
	defaultWindowSeconds       = 10
	defaultScanType            = "both"
	defaultTitleThreshold      = 75
	defaultRoundingToleranceMs = 1000
	defaultSustainedMs         = 10000
	defaultWorkers             = 2
	defaultRetryAttempts       = 3
	defaultRetryInitialMs      = 500
	defaultRetryMaxMs          = 8000
	defaultRetryMultiplier     = 2.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir(),
		},
		ACRCloud: ACRCloud{
			Host:           defaultACRCloudHost,
			TimeoutSeconds: defaultACRCloudTimeout,
		},
		Scan: Scan{
			WindowSeconds:       defaultWindowSeconds,
			ScanType:            defaultScanType,
			TitleThreshold:      defaultTitleThreshold,
			RoundingToleranceMs: defaultRoundingToleranceMs,
			SustainedMs:         defaultSustainedMs,
			Workers:             defaultWorkers,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryAttempts,
			InitialBackoffMs: defaultRetryInitialMs,
			MaxBackoffMs:     defaultRetryMaxMs,
			Multiplier:       defaultRetryMultiplier,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
