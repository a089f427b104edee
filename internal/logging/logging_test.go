package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  zapcore.Level
	}{
		{"", false, zapcore.InfoLevel},
		{"warn", false, zapcore.WarnLevel},
		{"error", true, zapcore.DebugLevel},
		{"debug", false, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		logger, err := New(tt.level, tt.debug)
		if err != nil {
			t.Fatalf("New(%q, %v) failed: %v", tt.level, tt.debug, err)
		}
		if !logger.Core().Enabled(tt.want) || (tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1)) {
			t.Errorf("New(%q, %v) not at level %v", tt.level, tt.debug, tt.want)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
