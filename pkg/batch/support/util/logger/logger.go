// Package logger provides the leveled logging facade used across the ingest batch runtime.
// Messages are written as JSON through a zap SugaredLogger whose level can be changed at runtime.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	sugar  = newSugar(level)
	silent bool
)

func newSugar(lvl zap.AtomicLevel) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.Level = lvl
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build zap logger: %v\n", err)
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetLogLevel sets the global log level.
// Valid values are "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL" and "SILENT" (case-insensitive).
// TRACE is treated as DEBUG. Unknown values fall back to INFO.
func SetLogLevel(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	silent = false
	switch strings.ToUpper(lvl) {
	case "TRACE", "DEBUG":
		level.SetLevel(zap.DebugLevel)
	case "INFO", "":
		level.SetLevel(zap.InfoLevel)
	case "WARN":
		level.SetLevel(zap.WarnLevel)
	case "ERROR":
		level.SetLevel(zap.ErrorLevel)
	case "FATAL":
		level.SetLevel(zap.FatalLevel)
	case "SILENT":
		silent = true
		level.SetLevel(zap.FatalLevel)
	default:
		level.SetLevel(zap.InfoLevel)
		sugar.Warnf("Unknown log level '%s' specified. Defaulting to INFO level.", lvl)
	}
}

// Level returns the current zap level.
func Level() zapcore.Level {
	return level.Level()
}

// Zap returns the underlying logger, for libraries that accept a *zap.Logger.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Desugar()
}

func enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return !silent
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	if enabled() {
		sugar.Debugf(format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	if enabled() {
		sugar.Infof(format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	if enabled() {
		sugar.Warnf(format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	if enabled() {
		sugar.Errorf(format, v...)
	}
}

// Fatalf logs the message and terminates the process with exit code 1.
func Fatalf(format string, v ...interface{}) {
	sugar.Fatalf(format, v...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = sugar.Sync()
}
