// Package port defines the interfaces (ports) between the batch runtime and the components it runs.
package port

import (
	"context"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
)

// Job is an executable batch job.
type Job interface {
	// Run executes the job's steps.
	//
	// Parameters:
	//   ctx: The context for the operation. Cancelling it stops the job.
	//   jobExecution: The current JobExecution instance.
	//   jobParameters: The job parameters for the execution.
	//
	// Returns:
	//   error: An error if a step failed.
	Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error
	// JobName returns the logical name of the job.
	JobName() string
	// ValidateParameters validates job parameters before a JobInstance is created.
	ValidateParameters(params model.JobParameters) error
}

// JobRunner drives a JobExecution through its status transitions.
type JobRunner interface {
	// Run executes job and persists the final state of jobExecution.
	Run(ctx context.Context, job Job, jobExecution *model.JobExecution)
}

// JobLauncher creates executions and runs them.
type JobLauncher interface {
	// Launch resolves the JobInstance for (jobName, params), creates a JobExecution and runs it to completion.
	//
	// Returns:
	//   *model.JobExecution: The finished execution. Its Status tells whether the job succeeded.
	//   error: An error if the execution could not be created.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// JobParametersIncrementer derives the parameters of the next JobInstance from the previous ones.
type JobParametersIncrementer interface {
	GetNext(params model.JobParameters) model.JobParameters
}

// Step is a single step executed within a job.
type Step interface {
	// Execute runs the step.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution instance.
	//   stepExecution: The StepExecution to update with counts and status.
	//
	// Returns:
	//   error: An error if the step failed. The StepExecution is marked FAILED in that case.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
	// StepName returns the logical name of the step.
	StepName() string
	// ID returns the unique ID of the step definition.
	ID() string
}

// ItemReader reads items one at a time.
type ItemReader[O any] interface {
	// Open prepares the reader. Structural problems in the input are reported here,
	// before any item is read.
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or io.EOF when the input is exhausted.
	Read(ctx context.Context) (O, error)
	Close(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ItemProcessor transforms an item. Return ErrFilterItem to drop it.
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter writes chunks of items.
type ItemWriter[I any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write receives one chunk.
	Write(ctx context.Context, items []I) error
	// Close commits everything written since Open.
	Close(ctx context.Context) error
	// Rollback discards everything written since Open. The step calls it instead of Close when it fails.
	Rollback(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// Tasklet is a single unit of work executed by a tasklet step.
type Tasklet interface {
	// Execute performs the work.
	//
	// Returns:
	//   model.ExitStatus: The exit status of the step.
	//   error: An error if the work failed.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error)
	Close(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// SkipListener is notified of skipped items.
type SkipListener interface {
	OnSkipRead(ctx context.Context, err error)
	OnSkipProcess(ctx context.Context, item interface{}, err error)
}

// StepExecutionListener is notified around a step.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener is notified around each chunk.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
}

// JobExecutionListener is notified around a job.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}
