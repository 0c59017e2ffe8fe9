package telemetry

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLoggerText(t *testing.T) {
	logger := NewLogger("test", false, slog.LevelWarn)
	if logger == nil {
		t.Fatal("expected logger")
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestNewLoggerBridge(t *testing.T) {
	logger := NewLogger("test", true, slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Info("bridged record", "key", "value")
}
