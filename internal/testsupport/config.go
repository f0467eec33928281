package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"acrscan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.ACRCloud.AccessKey = "test-key"
	cfgVal.ACRCloud.AccessSecret = "test-secret"
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OutputDir = filepath.Join(base, "reports")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Retry.InitialBackoffMs = 1
	cfgVal.Retry.MaxBackoffMs = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithoutCredentials clears the ACRCloud credentials.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ACRCloud.AccessKey = ""
		b.cfg.ACRCloud.AccessSecret = ""
	}
}

// WithACRCloudHost points the identify client at host, usually an httptest URL.
func WithACRCloudHost(host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ACRCloud.Host = host
	}
}

// WithScan applies mutate to the scan section.
func WithScan(mutate func(*config.Scan)) ConfigOption {
	return func(b *configBuilder) {
		mutate(&b.cfg.Scan)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
