// Package logger wraps zap construction so both binaries configure logging
// the same way.
package logger

import (
	"go.uber.org/zap"
)

// Logger carries the shared zap instance.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger backed by a no-op zap logger until Init is called.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds the production zap logger at the given level ("debug", "info",
// "warn", "error"). An unparseable level is an error.
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	log, err := cfg.Build()
	if err != nil {
		return err
	}
	l.Log = log
	return nil
}
