package runner

import (
	"context"
	"errors"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// ParameterValidator validates job parameters before a JobInstance is created.
type ParameterValidator func(params model.JobParameters) error

// SimpleJob runs its steps in order and stops at the first failing step.
type SimpleJob struct {
	name          string
	steps         []port.Step
	jobRepository repository.JobRepository
	jobListeners  []port.JobExecutionListener
	validator     ParameterValidator
}

var _ port.Job = (*SimpleJob)(nil)

// NewSimpleJob creates a job running steps sequentially.
func NewSimpleJob(name string, jobRepository repository.JobRepository, steps ...port.Step) *SimpleJob {
	return &SimpleJob{
		name:          name,
		steps:         steps,
		jobRepository: jobRepository,
	}
}

func (j *SimpleJob) JobName() string {
	return j.name
}

// Steps returns the steps in execution order.
func (j *SimpleJob) Steps() []port.Step {
	return j.steps
}

func (j *SimpleJob) RegisterJobExecutionListener(l port.JobExecutionListener) {
	j.jobListeners = append(j.jobListeners, l)
}

// SetParameterValidator installs v as the parameter validation of the job.
func (j *SimpleJob) SetParameterValidator(v ParameterValidator) {
	j.validator = v
}

func (j *SimpleJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': Validating JobParameters: %s", j.name, params.String())
	if j.validator == nil {
		return nil
	}
	return j.validator(params)
}

// Run executes the steps. A failing step marks the execution FAILED, a cancelled context marks it STOPPED.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution, jobParameters model.JobParameters) error {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}

	runErr := j.runSteps(ctx, jobExecution)
	switch {
	case runErr == nil:
		jobExecution.MarkAsCompleted()
	case errors.Is(runErr, context.Canceled):
		jobExecution.MarkAsStopped()
		jobExecution.AddFailureException(runErr)
	default:
		jobExecution.MarkAsFailed(runErr)
	}

	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
	return runErr
}

func (j *SimpleJob) runSteps(ctx context.Context, jobExecution *model.JobExecution) error {
	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		stepExecution := model.NewStepExecution(model.NewID(), jobExecution, step.StepName())
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			return exception.NewBatchError(j.name, "Failed to save StepExecution for step '"+step.StepName()+"'", err, false, false)
		}
		logger.Infof("Job '%s': Executing step '%s' (StepExecution ID: %s).", j.name, step.StepName(), stepExecution.ID)

		if err := step.Execute(ctx, jobExecution, stepExecution); err != nil {
			logger.Errorf("Job '%s': Step '%s' failed: %v", j.name, step.StepName(), err)
			return err
		}
		if stepExecution.Status != model.BatchStatusCompleted {
			return exception.NewBatchErrorf(j.name, "step '%s' ended with status %s", step.StepName(), stepExecution.Status)
		}
	}
	return nil
}
