package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { SetLogLevel("INFO") })

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"TRACE":  zapcore.DebugLevel,
		"WARN":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"bogus":  zapcore.InfoLevel,
		"":       zapcore.InfoLevel,
		"SILENT": zapcore.FatalLevel,
	}
	for in, want := range cases {
		SetLogLevel(in)
		assert.Equal(t, want, Level(), "level %q", in)
	}
}

func TestSilentSuppressesOutput(t *testing.T) {
	t.Cleanup(func() { SetLogLevel("INFO") })
	SetLogLevel("SILENT")
	assert.False(t, enabled())
	SetLogLevel("INFO")
	assert.True(t, enabled())
}

func TestExtractMeaningfulFunctionName(t *testing.T) {
	assert.Equal(t, "github.com/formula1dl/ingest/internal/app.RunApplication",
		extractMeaningfulFunctionName("github.com/formula1dl/ingest/internal/app.RunApplication.func1"))
	assert.Equal(t, "main.run", extractMeaningfulFunctionName("main.run"))
}

func TestFxLoggerAdapterShortensHookNames(t *testing.T) {
	adapter := NewFxLoggerAdapter()

	event := &fxevent.OnStartExecuting{FunctionName: "github.com/formula1dl/ingest/pkg/batch/infrastructure/metrics.NewMetricRecorder.func1"}
	adapter.LogEvent(event)
	assert.Equal(t, "github.com/formula1dl/ingest/pkg/batch/infrastructure/metrics.NewMetricRecorder", event.FunctionName)

	stopped := &fxevent.OnStopExecuted{FunctionName: "main.run"}
	adapter.LogEvent(stopped)
	assert.Equal(t, "main.run", stopped.FunctionName)
}
