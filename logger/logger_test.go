package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(VerbosityUser))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(VerbosityInfo))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(VerbosityDebug))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
}

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(true, VerbosityInfo))
	assert.True(t, JSONOutput)
	require.NotNil(t, Logger)

	require.NoError(t, Initialize(false, VerbosityDebug))
	assert.False(t, JSONOutput)
}

func TestLoggingBeforeInitializeDoesNotPanic(t *testing.T) {
	// The package-level no-op logger must absorb calls made before Initialize
	assert.NotPanics(t, func() {
		Infow("early message", FieldSource, "yahoo")
		Debugf("early %s", "debug")
		Warn("early warn")
	})
}
