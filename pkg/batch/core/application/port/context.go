package port

import (
	"context"
	"errors"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// ErrFilterItem is returned by an ItemProcessor to drop an item without counting it as a failure.
var ErrFilterItem = errors.New("item filtered")

type contextKey string

// StepExecutionKey is the context key under which the running StepExecution is stored.
const StepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution returns a context carrying se.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, StepExecutionKey, se)
}

// GetStepExecutionFromContext returns the StepExecution stored in ctx, or nil.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(StepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
