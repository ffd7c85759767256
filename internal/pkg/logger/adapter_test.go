package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	_, zl, ok := ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, zapcore.DebugLevel, zl)

	_, zl, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, zapcore.InfoLevel, zl)
}

func TestInitInstallsAdapter(t *testing.T) {
	zl, err := Init("error", "json")
	require.NoError(t, err)
	require.NotNil(t, zl)

	l := NewSlogAdapter()
	assert.NotPanics(t, func() {
		l.Debug("debug is filtered")
		l.Info("info is filtered")
		l.Warn("warn is filtered")
		l.Error("error is written", "key", "value")
	})
}
