package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			l, err := New(tc.level)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tc.enabled))
			assert.False(t, l.Core().Enabled(tc.muted))
		})
	}

	_, err := New("loud")
	assert.Error(t, err)
}

func TestForRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	previous := Logger
	Logger = zap.New(core)
	t.Cleanup(func() { Logger = previous })

	first := ForRun("acme")
	second := ForRun("acme")
	first.Info("Batch completed")
	second.Info("Batch completed")
	Info("global")

	entries := logs.All()
	require.Len(t, entries, 3)

	firstFields := entries[0].ContextMap()
	secondFields := entries[1].ContextMap()
	assert.Equal(t, "acme", firstFields["organization"])
	assert.NotEmpty(t, firstFields["run_id"])
	assert.NotEqual(t, firstFields["run_id"], secondFields["run_id"])
	assert.NotContains(t, entries[2].ContextMap(), "run_id")
}
