package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		" WARN ":  zap.WarnLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"info":    zap.InfoLevel,
		"verbose": zap.InfoLevel,
		"":        zap.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerConfig(t *testing.T) {
	assert.Equal(t, "json", loggerConfig("JSON").Encoding)
	assert.Equal(t, []string{"stderr"}, loggerConfig("json").OutputPaths)
	assert.Equal(t, "console", loggerConfig("").Encoding)
}

func TestInitLogger(t *testing.T) {
	logger, err := InitLogger("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	Cleanup()
}
