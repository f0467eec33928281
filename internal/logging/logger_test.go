package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"acrscan/internal/config"
	"acrscan/internal/logging"
	"acrscan/internal/services"
)

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "scanner")
	logger.Info("window probed",
		logging.String(logging.FieldSource, "/music/mix.mp3"),
		logging.String(logging.FieldKind, "music"),
		logging.Int64(logging.FieldWindowMs, 20000),
		logging.String("title", "Blue Monday"),
	)

	line := buf.String()
	for _, fragment := range []string{"INFO", "[mix.mp3 · music]", "scanner: window probed", "window_ms=20000", `title="Blue Monday"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestJSONLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("scan finished", logging.Int("file_count", 3))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if record["msg"] != "scan finished" || record["level"] != "info" {
		t.Fatalf("record = %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigMirrorsToFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Debug("mirrored")

	path := logging.DailyLogPath(cfg.Paths.LogDir, time.Now())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"mirrored"`) {
		t.Fatalf("log file missing record: %s", data)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "window failed", "window_failed", logging.Error(errors.New("boom")))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("missing %s in %v", key, record)
		}
	}
	if record[logging.FieldEventType] != "window_failed" {
		t.Fatalf("event type = %v", record[logging.FieldEventType])
	}
}

func TestErrorWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.ErrorWithContext(logger, "scan aborted", "scan_aborted",
		logging.String(logging.FieldEventType, "config_rejected"),
		logging.String(logging.FieldErrorHint, "check the access key"),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "config_rejected" {
		t.Fatalf("event type = %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] != "check the access key" {
		t.Fatalf("error hint = %v", record[logging.FieldErrorHint])
	}
	if _, ok := record[logging.FieldImpact]; ok {
		t.Fatalf("error records carry no impact default: %v", record)
	}
}

func TestWithContextAddsScanFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithScanID(context.Background(), "scan-42")
	ctx = services.WithSource(ctx, "mix.mp3")
	logging.WithContext(ctx, base).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldScanID] != "scan-42" || record[logging.FieldSource] != "mix.mp3" {
		t.Fatalf("record = %v", record)
	}
	if _, ok := record[logging.FieldKind]; ok {
		t.Fatal("kind should be absent when not set")
	}
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "acrscan-20200101.log")
	current := filepath.Join(dir, "acrscan-20200102.log")
	unrelated := filepath.Join(dir, "history.db")
	for _, path := range []string{old, current, unrelated} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stale := time.Now().AddDate(0, 0, -90)
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneLogs(logging.NewNop(), dir, 30, current)
	if removed != 1 {
		t.Fatalf("removed %d files, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected stale log to be removed")
	}
	for _, path := range []string{current, unrelated} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
	if logging.PruneLogs(nil, dir, 0, "") != 0 {
		t.Fatal("retention 0 must disable pruning")
	}
}
