package metrics

import (
	"context"
	"time"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards everything.
type NoOpMetricRecorder struct{}

func NewNoOpMetricRecorder() MetricRecorder { return &NoOpMetricRecorder{} }

func (r *NoOpMetricRecorder) RecordJobStart(context.Context, *model.JobExecution) {}
func (r *NoOpMetricRecorder) RecordJobEnd(context.Context, *model.JobExecution) {}
func (r *NoOpMetricRecorder) RecordStepStart(context.Context, *model.StepExecution) {}
func (r *NoOpMetricRecorder) RecordStepEnd(context.Context, *model.StepExecution) {}
func (r *NoOpMetricRecorder) RecordItemRead(context.Context, string) {}
func (r *NoOpMetricRecorder) RecordItemProcess(context.Context, string) {}
func (r *NoOpMetricRecorder) RecordItemWrite(context.Context, string, int) {}
func (r *NoOpMetricRecorder) RecordItemSkip(context.Context, string, string) {}
func (r *NoOpMetricRecorder) RecordChunkCommit(context.Context, string, int) {}
func (r *NoOpMetricRecorder) RecordDuration(context.Context, string, time.Duration, map[string]string) {}

// NoOpTracer creates no spans.
type NoOpTracer struct{}

func NewNoOpTracer() Tracer { return &NoOpTracer{} }

func (t *NoOpTracer) StartJobSpan(ctx context.Context, _ *model.JobExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartStepSpan(ctx context.Context, _ *model.StepExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(context.Context, string, error) {}
func (t *NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}
