package metrics

import (
	"context"
	"time"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
)

// CompositeRecorder fans every call out to a list of recorders, in order.
type CompositeRecorder struct {
	recorders []metrics.MetricRecorder
}

func NewCompositeRecorder(recorders ...metrics.MetricRecorder) *CompositeRecorder {
	return &CompositeRecorder{recorders: recorders}
}

func (c *CompositeRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	for _, r := range c.recorders {
		r.RecordJobStart(ctx, execution)
	}
}

func (c *CompositeRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	for _, r := range c.recorders {
		r.RecordJobEnd(ctx, execution)
	}
}

func (c *CompositeRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	for _, r := range c.recorders {
		r.RecordStepStart(ctx, execution)
	}
}

func (c *CompositeRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	for _, r := range c.recorders {
		r.RecordStepEnd(ctx, execution)
	}
}

func (c *CompositeRecorder) RecordItemRead(ctx context.Context, stepName string) {
	for _, r := range c.recorders {
		r.RecordItemRead(ctx, stepName)
	}
}

func (c *CompositeRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	for _, r := range c.recorders {
		r.RecordItemProcess(ctx, stepName)
	}
}

func (c *CompositeRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	for _, r := range c.recorders {
		r.RecordItemWrite(ctx, stepName, count)
	}
}

func (c *CompositeRecorder) RecordItemSkip(ctx context.Context, stepName string, reason string) {
	for _, r := range c.recorders {
		r.RecordItemSkip(ctx, stepName, reason)
	}
}

func (c *CompositeRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	for _, r := range c.recorders {
		r.RecordChunkCommit(ctx, stepName, count)
	}
}

func (c *CompositeRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	for _, r := range c.recorders {
		r.RecordDuration(ctx, name, duration, tags)
	}
}

var _ metrics.MetricRecorder = (*CompositeRecorder)(nil)
