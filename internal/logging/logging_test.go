package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_StructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZap(zap.New(core))

	logger.Debug("batch received", "partition", "0", "events", 5)
	logger.Info("reader started", "partition", "1")
	logger.Warn("receive retry", "attempt", 2)
	logger.Error("reader failed", "kind", "non_retryable")

	entries := logs.All()
	assert.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(5), entries[0].ContextMap()["events"])
	assert.Equal(t, "1", entries[1].ContextMap()["partition"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "reader failed", entries[3].Message)
}

func TestNewZap_NilFallsBackToNop(t *testing.T) {
	logger := NewZap(nil)
	assert.NotPanics(t, func() { logger.Info("ignored", "k", "v") })
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Debug("x")
		logger.Info("x", "k", 1)
		logger.Warn("x")
		logger.Error("x")
		logger.Fatal("x")
	})
}

func TestFormatKeyValues(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want string
	}{
		{name: "empty", in: nil, want: ""},
		{name: "pairs", in: []any{"partition", "3", "events", 10}, want: "partition=3 events=10"},
		{name: "dangling key", in: []any{"partition"}, want: "partition=<missing>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatKeyValues(tt.in))
		})
	}
}

func TestTestLogger(t *testing.T) {
	logger := NewTest(t)
	logger.Info("visible in verbose output", "partition", "0")
}
