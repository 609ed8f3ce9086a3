package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(logLevelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(logLevelStr)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// loggerConfig returns the development console config, or the production
// JSON config when format is "json". Both write to stderr so CLI output on
// stdout stays clean.
func loggerConfig(format string) zap.Config {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg
	}
	return zap.NewDevelopmentConfig()
}

// InitLogger builds the process logger at the given level and format and
// remembers it for Cleanup.
func InitLogger(logLevelStr, format string) (*zap.Logger, error) {
	config := loggerConfig(format)
	config.Level = zap.NewAtomicLevelAt(ParseLevel(logLevelStr))

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	globalLogger = logger
	return logger, nil
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
