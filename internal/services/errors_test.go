package services_test

import (
	"errors"
	"strings"
	"testing"

	"acrscan/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "probe", "extract", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "extract", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !services.Retryable(err) {
		t.Fatalf("expected nil marker to default to transient, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		abortFile bool
		abortRun  bool
	}{
		{"transient", services.Wrap(services.ErrTransient, "acrcloud", "identify", "http 503", nil), true, false, false},
		{"decode", services.Wrap(services.ErrDecode, "probe", "extract", "bad stream", nil), false, true, false},
		{"configuration", services.Wrap(services.ErrConfiguration, "acrcloud", "identify", "invalid key", nil), false, false, true},
		{"malformed", services.Wrap(services.ErrMalformed, "acrcloud", "decode", "bad json", nil), false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Retryable(tt.err); got != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got, tt.retryable)
			}
			if got := services.AbortsFile(tt.err); got != tt.abortFile {
				t.Errorf("AbortsFile = %v, want %v", got, tt.abortFile)
			}
			if got := services.AbortsRun(tt.err); got != tt.abortRun {
				t.Errorf("AbortsRun = %v, want %v", got, tt.abortRun)
			}
		})
	}
}
