package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"acrscan/internal/config"
	"acrscan/internal/recognizer"
	"acrscan/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	recognizer *testsupport.Recognizer
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("ACRCLOUD_ACCESS_KEY", "")
	t.Setenv("ACRCLOUD_ACCESS_SECRET", "")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	configPath := filepath.Join(homeDir, ".config", "acrscan", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		recognizer: &testsupport.Recognizer{Durations: map[string]int64{}},
	}
}

// media creates a placeholder file the fake recognizer reports as durationMs long.
func (e *cliTestEnv) media(t *testing.T, name string, durationMs int64) string {
	t.Helper()
	path := testsupport.MediaDir(t, filepath.Join(e.baseDir, "media"), name)[0]
	e.recognizer.Durations[path] = durationMs
	return path
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	var configFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag)
	ctx.skipPreflight = true
	ctx.newRecognizer = func(*config.Config, recognizer.Cache, *slog.Logger) recognizer.Recognizer {
		return env.recognizer
	}

	cmd := buildRootCommand(ctx)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlog_dir = %q\noutput_dir = %q\ncache_dir = %q\n\n[acrcloud]\naccess_key = %q\naccess_secret = %q\n\n[retry]\ninitial_backoff_ms = 1\nmax_backoff_ms = 1\n",
		cfg.Paths.LogDir,
		cfg.Paths.OutputDir,
		cfg.Paths.CacheDir,
		cfg.ACRCloud.AccessKey,
		cfg.ACRCloud.AccessSecret,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
