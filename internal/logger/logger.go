package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.SugaredLogger
)

// Init initializes the global logger. Format is "json" or "console".
// A disabled logger turns every call into a no-op.
func Init(enabled bool, levelStr, format string) error {
	mu.Lock()
	defer mu.Unlock()

	if !enabled {
		global = nil
		return nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(levelStr))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	if format != "json" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	global = l.Sugar()
	return nil
}

func parseLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Debugf(format, args...)
	}
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Infof(format, args...)
	}
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Warnf(format, args...)
	}
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Errorf(format, args...)
	}
}

// Sync flushes buffered entries. Safe to call on a disabled logger.
func Sync() {
	if l := get(); l != nil {
		_ = l.Sync()
	}
}
