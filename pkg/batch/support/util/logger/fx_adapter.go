package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FxLoggerAdapter writes fx container events through the package's zap logger.
// Successful events are logged at DEBUG and failures at ERROR, so a normal start is quiet at INFO.
type FxLoggerAdapter struct {
	zap *fxevent.ZapLogger
}

// NewFxLoggerAdapter returns the fxevent.Logger installed by Module.
func NewFxLoggerAdapter() fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: Zap().WithOptions(zap.AddCallerSkip(-1)).Named("fx")}
	l.UseLogLevel(zapcore.DebugLevel)
	l.UseErrorLevel(zapcore.ErrorLevel)
	return &FxLoggerAdapter{zap: l}
}

// LogEvent drops events while the level is SILENT and shortens hook names of anonymous functions.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	if !enabled() {
		return
	}
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		e.FunctionName = extractMeaningfulFunctionName(e.FunctionName)
	case *fxevent.OnStartExecuted:
		e.FunctionName = extractMeaningfulFunctionName(e.FunctionName)
	case *fxevent.OnStopExecuting:
		e.FunctionName = extractMeaningfulFunctionName(e.FunctionName)
	case *fxevent.OnStopExecuted:
		e.FunctionName = extractMeaningfulFunctionName(e.FunctionName)
	}
	l.zap.LogEvent(event)
}

// extractMeaningfulFunctionName strips the anonymous function suffix (".func1") from an fx function name.
func extractMeaningfulFunctionName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
