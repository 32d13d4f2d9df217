//go:build !tinygo

package scale

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// NewDefaultLogger instantiates a new default logger for the given level name
// ("debug", "info", "warn", "error"). An empty level selects info
func NewDefaultLogger(level string) *zap.SugaredLogger {
	logger, err := NewLogger(level)
	if err != nil {
		fmt.Printf("failed to instantiate logger: %s\n", err)
		os.Exit(1)
	}

	return logger
}

// NewLogger instantiates a new zap based logger, returning an error on an invalid level
func NewLogger(level string) (*zap.SugaredLogger, error) {
	if level == "" {
		level = "info"
	}

	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level `%s`: %w", level, err)
	}

	logCfg := zap.NewDevelopmentConfig()
	logCfg.DisableStacktrace = true
	logCfg.DisableCaller = atomicLevel.Level() > zap.DebugLevel
	logCfg.Level = atomicLevel
	zapLogger, err := logCfg.Build()
	if err != nil {
		return nil, err
	}

	return zapLogger.Sugar(), nil
}
