// Package repository declares persistence of batch execution metadata.
package repository

import (
	"context"
	"errors"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

var (
	ErrJobInstanceNotFound    = errors.New("job instance not found")
	ErrJobExecutionNotFound   = errors.New("job execution not found")
	ErrStepExecutionNotFound  = errors.New("step execution not found")
	ErrCheckpointDataNotFound = errors.New("checkpoint data not found")
)

func init() {
	exception.RegisterErrorType("ErrJobInstanceNotFound", ErrJobInstanceNotFound)
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
	exception.RegisterErrorType("ErrStepExecutionNotFound", ErrStepExecutionNotFound)
	exception.RegisterErrorType("ErrCheckpointDataNotFound", ErrCheckpointDataNotFound)
}

// JobInstance persists job instances.
type JobInstance interface {
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error
	FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)
	// FindJobInstanceByJobNameAndParameters looks an instance up by job name and exact parameters.
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	// FindLatestJobInstance returns the most recently created instance of jobName.
	FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error)
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)
}

// JobExecution persists job executions.
type JobExecution interface {
	SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	// UpdateJobExecution fails with exception.ErrOptimisticLockingFailure when the stored version moved.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error
	// FindJobExecutionByID loads the execution together with its step executions.
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error)
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error)
}

// StepExecution persists step executions.
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error
	FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error)
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error)
}

// CheckpointDataRepository persists the execution context of the last committed chunk of a step.
type CheckpointDataRepository interface {
	SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error
	FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error)
}

// JobRepository aggregates all batch metadata persistence.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	CheckpointDataRepository

	// Close releases resources held by the repository.
	Close() error
}
