package usecase

import (
	"context"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// JobExplorer reads back what the job repository recorded about past runs.
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution, with its step executions, by ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves all JobExecutions of a JobInstance, latest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetJobInstanceCount returns how many instances of jobName exist.
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)

	// SummarizeSteps returns the item counts of every step of an execution, in run order.
	SummarizeSteps(ctx context.Context, executionID string) ([]StepSummary, error)
}
