package usecase

import (
	"context"
	"errors"
	"fmt"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// SimpleJobLauncher launches registered jobs and waits for them to finish.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	registry      *JobRegistry
	jobRunner     port.JobRunner
}

func NewSimpleJobLauncher(
	repo repository.JobRepository,
	registry *JobRegistry,
	runner port.JobRunner,
) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: repo,
		registry:      registry,
		jobRunner:     runner,
	}
}

// Launch runs jobName synchronously.
//
// A job with an incrementer gets a new JobInstance on every launch, its parameters derived from
// the latest instance. Without one, the instance for (jobName, params) is reused and every launch
// is a fresh execution of it. A launch is refused while another execution of the instance is running.
//
// The returned error covers the launch itself. Job failures are reported through the execution's status.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, jobParameters model.JobParameters) (*model.JobExecution, error) {
	const op = "SimpleJobLauncher.Launch"
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, jobParameters.String())

	reg, err := l.registry.Get(jobName)
	if err != nil {
		return nil, err
	}
	if err := reg.Job.ValidateParameters(jobParameters); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", jobName, err)
		return nil, exception.NewBatchError(op, "JobParameters validation error", err, false, false)
	}

	if reg.Incrementer != nil {
		jobParameters, err = l.nextParameters(ctx, jobName, jobParameters, reg.Incrementer)
		if err != nil {
			return nil, err
		}
	}

	jobInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, jobParameters)
	if err != nil && !errors.Is(err, repository.ErrJobInstanceNotFound) {
		return nil, exception.NewBatchError(op, "Failed to search for existing JobInstance", err, false, false)
	}

	if jobInstance != nil {
		latest, err := l.jobRepository.FindLatestJobExecution(ctx, jobInstance.ID)
		if err != nil && !errors.Is(err, repository.ErrJobExecutionNotFound) {
			return nil, exception.NewBatchError(op, "Failed to search for the latest JobExecution", err, false, false)
		}
		if latest != nil && !latest.Status.IsFinished() {
			return nil, exception.NewBatchErrorf(op, "a JobExecution (ID: %s, Status: %s) is already running for JobInstance (ID: %s)", latest.ID, latest.Status, jobInstance.ID)
		}
		logger.Infof("Creating new JobExecution for existing JobInstance (ID: %s).", jobInstance.ID)
	} else {
		jobInstance = model.NewJobInstance(jobName, jobParameters)
		if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
			return nil, exception.NewBatchError(op, fmt.Sprintf("Failed to save new JobInstance for '%s'", jobName), err, false, false)
		}
		logger.Infof("Created and saved new JobInstance (ID: %s, JobName: %s).", jobInstance.ID, jobName)
	}

	jobExecution := model.NewJobExecution(jobInstance.ID, jobName, jobInstance.Parameters)
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(op, "Failed to save JobExecution", err, false, false)
	}
	logger.Infof("Starting Job '%s' (Execution ID: %s, Job Instance ID: %s).", jobName, jobExecution.ID, jobInstance.ID)

	l.jobRunner.Run(ctx, reg.Job, jobExecution)
	return jobExecution, nil
}

// nextParameters applies incrementer to the given parameters merged over those of the latest instance.
func (l *SimpleJobLauncher) nextParameters(ctx context.Context, jobName string, params model.JobParameters, incrementer port.JobParametersIncrementer) (model.JobParameters, error) {
	base := model.NewJobParameters()
	last, err := l.jobRepository.FindLatestJobInstance(ctx, jobName)
	switch {
	case err == nil:
		base = last.Parameters.Copy()
	case !errors.Is(err, repository.ErrJobInstanceNotFound):
		return params, exception.NewBatchError("SimpleJobLauncher.Launch", "Failed to look up the latest JobInstance", err, false, false)
	}
	for k, v := range params.Params {
		base.Put(k, v)
	}
	next := incrementer.GetNext(base)
	logger.Infof("Generated new JobParameters using JobParametersIncrementer: %s", next.String())
	return next, nil
}

var _ port.JobLauncher = (*SimpleJobLauncher)(nil)
