// Package logging builds the zap loggers used by presentd.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoding, debug stack traces
	OutputPath  string // file path; empty means stderr
}

// New builds a logger. The daemon writes JSON to a file; CLI commands
// log to stderr.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var config zap.Config
	if cfg.Development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	output := "stderr"
	if cfg.OutputPath != "" {
		output = cfg.OutputPath
	}
	config.OutputPaths = []string{output}
	config.ErrorOutputPaths = []string{output}

	return config.Build()
}

// NewOrFallback is New, falling back to a stderr production logger.
func NewOrFallback(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
