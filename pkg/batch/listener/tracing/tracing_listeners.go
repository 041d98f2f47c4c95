// Package tracing provides listeners that annotate the active job and step spans with batch events.
package tracing

import (
	"context"

	"go.uber.org/fx"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/core/metrics"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

// TracingJobListener records the job outcome on the job span.
type TracingJobListener struct {
	tracer metrics.Tracer
}

func NewTracingJobListener(tracer metrics.Tracer) *TracingJobListener {
	return &TracingJobListener{tracer: tracer}
}

func (l *TracingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.tracer.RecordEvent(ctx, "job.started", map[string]interface{}{
		"job.name":     jobExecution.JobName,
		"job.instance": jobExecution.JobInstanceID,
	})
}

func (l *TracingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.tracer.RecordEvent(ctx, "job.finished", map[string]interface{}{
		"job.status":   jobExecution.Status.String(),
		"job.failures": len(jobExecution.Failures),
		"job.steps":    len(jobExecution.StepExecutions),
	})
}

var _ port.JobExecutionListener = (*TracingJobListener)(nil)

// TracingStepListener records step counters on the step span.
type TracingStepListener struct {
	tracer metrics.Tracer
}

func NewTracingStepListener(tracer metrics.Tracer) *TracingStepListener {
	return &TracingStepListener{tracer: tracer}
}

func (l *TracingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {}

func (l *TracingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	l.tracer.RecordEvent(ctx, "step.finished", map[string]interface{}{
		"step.status":      stepExecution.Status.String(),
		"step.read_count":  stepExecution.ReadCount,
		"step.write_count": stepExecution.WriteCount,
		"step.skip_count":  stepExecution.SkipCount(),
	})
}

var _ port.StepExecutionListener = (*TracingStepListener)(nil)

// TracingChunkListener marks each committed chunk.
type TracingChunkListener struct {
	tracer metrics.Tracer
}

func NewTracingChunkListener(tracer metrics.Tracer) *TracingChunkListener {
	return &TracingChunkListener{tracer: tracer}
}

func (l *TracingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {}

func (l *TracingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	l.tracer.RecordEvent(ctx, "chunk.committed", map[string]interface{}{
		"step.read_count":  stepExecution.ReadCount,
		"step.write_count": stepExecution.WriteCount,
	})
}

var _ port.ChunkListener = (*TracingChunkListener)(nil)

// TracingSkipListener records skipped items as span events.
type TracingSkipListener struct {
	tracer metrics.Tracer
}

func NewTracingSkipListener(tracer metrics.Tracer) *TracingSkipListener {
	return &TracingSkipListener{tracer: tracer}
}

func (l *TracingSkipListener) OnSkipRead(ctx context.Context, err error) {
	l.tracer.RecordEvent(ctx, "item.skipped", map[string]interface{}{
		"skip.phase":  "read",
		"skip.reason": exception.ExtractErrorMessage(err),
	})
}

func (l *TracingSkipListener) OnSkipProcess(ctx context.Context, item interface{}, err error) {
	l.tracer.RecordEvent(ctx, "item.skipped", map[string]interface{}{
		"skip.phase":  "process",
		"skip.reason": exception.ExtractErrorMessage(err),
	})
}

var _ port.SkipListener = (*TracingSkipListener)(nil)

// Module contributes the tracing listeners to the listener groups.
var Module = fx.Provide(
	fx.Annotate(NewTracingJobListener, fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"job_listeners"`)),
	fx.Annotate(NewTracingStepListener, fx.As(new(port.StepExecutionListener)), fx.ResultTags(`group:"step_listeners"`)),
	fx.Annotate(NewTracingChunkListener, fx.As(new(port.ChunkListener)), fx.ResultTags(`group:"chunk_listeners"`)),
	fx.Annotate(NewTracingSkipListener, fx.As(new(port.SkipListener)), fx.ResultTags(`group:"skip_listeners"`)),
)
