package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeACRCloud()
	c.normalizeScan()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeACRCloud() {
	if c.ACRCloud.AccessKey == "" {
		if value, ok := os.LookupEnv("ACRCLOUD_ACCESS_KEY"); ok {
			c.ACRCloud.AccessKey = value
		}
	}
	if c.ACRCloud.AccessSecret == "" {
		if value, ok := os.LookupEnv("ACRCLOUD_ACCESS_SECRET"); ok {
			c.ACRCloud.AccessSecret = value
		}
	}
	if value, ok := os.LookupEnv("ACRCLOUD_HOST"); ok && strings.TrimSpace(value) != "" {
		c.ACRCloud.Host = value
	}
	c.ACRCloud.AccessKey = strings.TrimSpace(c.ACRCloud.AccessKey)
	c.ACRCloud.AccessSecret = strings.TrimSpace(c.ACRCloud.AccessSecret)
	host := strings.TrimSpace(c.ACRCloud.Host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	c.ACRCloud.Host = strings.TrimRight(host, "/")
	if c.ACRCloud.Host == "" {
		c.ACRCloud.Host = defaultACRCloudHost
	}
}

func (c *Config) normalizeScan() {
	c.Scan.ScanType = strings.ToLower(strings.TrimSpace(c.Scan.ScanType))
	switch c.Scan.ScanType {
	case "":
		c.Scan.ScanType = defaultScanType
	case "custom_file", "custom_files":
		c.Scan.ScanType = "custom"
	}
	if c.Scan.TimeThresholdMs == 0 {
		c.Scan.TimeThresholdMs = int64(c.Scan.WindowSeconds) * 1000
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
