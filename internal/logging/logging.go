// Package logging builds the zap logger shared by every navkit component.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger shape for a run mode.
type Options struct {
	Verbose bool   // debug level instead of info
	Console bool   // human-readable encoding instead of JSON
	File    string // log to this file instead of stderr
	Discard bool   // no logging at all (the TUI owns the terminal)
}

// New builds a logger from the production config.
func New(opts Options) (*zap.Logger, error) {
	if opts.Discard && opts.File == "" {
		return zap.NewNop(), nil
	}

	config := zap.NewProductionConfig()
	if opts.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if opts.Console {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	config.Sampling = nil
	if opts.File != "" {
		config.OutputPaths = []string{opts.File}
		config.ErrorOutputPaths = []string{opts.File}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named("navkit"), nil
}
