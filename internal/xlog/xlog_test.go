package xlog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewDefaultsToStderrText(t *testing.T) {
	log := New(Config{})
	if log == nil {
		t.Fatalf("New should never return nil")
	}
}

func TestNewWritesJSONWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Output: &buf, JSON: true})
	log.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected JSON-formatted output, got %q", buf.String())
	}
}

func TestNewRespectsLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelWarn, Output: &buf})
	log.Info("should be filtered")
	if buf.Len() != 0 {
		t.Fatalf("info-level message should be filtered at warn level, got %q", buf.String())
	}
	log.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatalf("warn-level message should not be filtered")
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	log := Discard()
	log.Error("this should vanish silently")
}
