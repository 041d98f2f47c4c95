package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/formula1dl/ingest/pkg/batch"

// OtelRecorder records batch metrics through an OpenTelemetry MeterProvider.
type OtelRecorder struct {
	jobDuration       metric.Float64Histogram
	jobExecutions     metric.Int64Counter
	stepDuration      metric.Float64Histogram
	stepExecutions    metric.Int64Counter
	itemsRead         metric.Int64Counter
	itemsProcessed    metric.Int64Counter
	itemsWritten      metric.Int64Counter
	itemsSkipped      metric.Int64Counter
	chunkCommits      metric.Int64Counter
	operationDuration metric.Float64Histogram
}

// NewOtelRecorder creates the instruments on a meter obtained from provider.
func NewOtelRecorder(provider metric.MeterProvider) (*OtelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OtelRecorder{}

	var err error
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}

	r.jobDuration = histogram("batch.job.duration", "Duration of batch job executions.")
	r.jobExecutions = counter("batch.job.executions", "Batch job executions by final status.")
	r.stepDuration = histogram("batch.step.duration", "Duration of batch step executions.")
	r.stepExecutions = counter("batch.step.executions", "Batch step executions by final status.")
	r.itemsRead = counter("batch.item.read", "Items read.")
	r.itemsProcessed = counter("batch.item.processed", "Items processed.")
	r.itemsWritten = counter("batch.item.written", "Items written.")
	r.itemsSkipped = counter("batch.item.skipped", "Items skipped.")
	r.chunkCommits = counter("batch.chunk.commits", "Chunk commits.")
	r.operationDuration = histogram("batch.operation.duration", "Duration of named batch operations.")
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry instruments: %w", err)
	}
	return r, nil
}

func (r *OtelRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {}

func (r *OtelRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	)
	r.jobExecutions.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OtelRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {}

func (r *OtelRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", jobNameOf(execution)),
		attribute.String("step_name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	)
	r.stepExecutions.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

func (r *OtelRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemsRead.Add(ctx, 1, stepAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.itemsProcessed.Add(ctx, 1, stepAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemsWritten.Add(ctx, int64(count), stepAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordItemSkip(ctx context.Context, stepName string, reason string) {
	r.itemsSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", jobNameFromContext(ctx)),
		attribute.String("step_name", stepName),
		attribute.String("reason", reason),
	))
}

func (r *OtelRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.chunkCommits.Add(ctx, 1, stepAttributes(ctx, stepName))
}

func (r *OtelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("name", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func stepAttributes(ctx context.Context, stepName string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("job_name", jobNameFromContext(ctx)),
		attribute.String("step_name", stepName),
	)
}

var _ metrics.MetricRecorder = (*OtelRecorder)(nil)
