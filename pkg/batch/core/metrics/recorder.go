// Package metrics declares the observability ports of the batch runtime.
package metrics

import (
	"context"
	"time"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// MetricRecorder records job, step and item counters.
type MetricRecorder interface {
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)
	RecordItemRead(ctx context.Context, stepName string)
	RecordItemProcess(ctx context.Context, stepName string)
	RecordItemWrite(ctx context.Context, stepName string, count int)
	// RecordItemSkip counts a skipped item; reason is a short classifier such as "read" or "process".
	RecordItemSkip(ctx context.Context, stepName string, reason string)
	RecordChunkCommit(ctx context.Context, stepName string, count int)
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

// Tracer wraps job and step executions in spans.
type Tracer interface {
	// StartJobSpan returns a derived context and a function ending the span.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	RecordError(ctx context.Context, module string, err error)
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
