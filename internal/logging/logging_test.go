package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		in      string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"", zapcore.InfoLevel, zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.in)
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if !logger.Core().Enabled(tt.enabled) || logger.Core().Enabled(tt.muted) {
			t.Fatalf("%q: unexpected level set", tt.in)
		}
	}
}

func TestNewDebug(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatalf("debug: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug logger should log debug")
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error")
	}
}
