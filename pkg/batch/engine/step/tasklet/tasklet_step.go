// Package tasklet implements steps that run a single Tasklet.
package tasklet

import (
	"context"
	"time"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// TaskletStep runs one Tasklet and records its outcome.
type TaskletStep struct {
	id                     string
	tasklet                port.Tasklet
	jobRepository          repository.JobRepository
	stepExecutionListeners []port.StepExecutionListener

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// NewTaskletStep creates a new TaskletStep. nil recorder and tracer record nothing.
func NewTaskletStep(
	id string,
	tasklet port.Tasklet,
	jobRepository repository.JobRepository,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *TaskletStep {
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &TaskletStep{
		id:             id,
		tasklet:        tasklet,
		jobRepository:  jobRepository,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

func (s *TaskletStep) ID() string {
	return s.id
}

func (s *TaskletStep) StepName() string {
	return s.id
}

func (s *TaskletStep) RegisterStepExecutionListener(l port.StepExecutionListener) {
	s.stepExecutionListeners = append(s.stepExecutionListeners, l)
}

// Execute runs the Tasklet. The exit status it returns becomes the step's exit status on success.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.id)

	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	s.metricRecorder.RecordStepStart(ctx, stepExecution)
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(s.id, "Failed to update StepExecution status to STARTED", err, false, false)
	}

	if err := s.tasklet.SetExecutionContext(ctx, stepExecution.ExecutionContext); err != nil {
		stepExecution.MarkAsFailed(err)
		if updateErr := s.jobRepository.UpdateStepExecution(ctx, stepExecution); updateErr != nil {
			logger.Errorf("TaskletStep '%s': Failed to update StepExecution: %v", s.id, updateErr)
		}
		return exception.NewBatchError(s.id, "Failed to set Tasklet ExecutionContext", err, false, false)
	}

	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	var exitStatus model.ExitStatus
	exitStatus, err = s.tasklet.Execute(ctx, stepExecution)

	if taskletEC, getErr := s.tasklet.GetExecutionContext(ctx); getErr == nil {
		stepExecution.ExecutionContext = taskletEC
	} else {
		logger.Warnf("TaskletStep '%s': Failed to retrieve ExecutionContext from Tasklet: %v", s.id, getErr)
	}

	if closeErr := s.tasklet.Close(ctx); closeErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to close Tasklet: %v", s.id, closeErr)
		if err == nil {
			err = closeErr
		}
	}

	if err != nil {
		s.tracer.RecordError(ctx, s.id, err)
		stepExecution.MarkAsFailed(err)
	} else {
		stepExecution.MarkAsCompleted()
		if exitStatus != "" {
			stepExecution.ExitStatus = exitStatus
		}
	}

	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepExecution)
	}
	s.metricRecorder.RecordStepEnd(ctx, stepExecution)
	s.metricRecorder.RecordDuration(ctx, "step."+s.id, time.Since(stepExecution.StartTime), map[string]string{"status": stepExecution.Status.String()})

	if updateErr := s.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); updateErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to update final StepExecution state: %v", s.id, updateErr)
		if err == nil {
			err = updateErr
		}
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.id, stepExecution.ExitStatus)
	return err
}

var _ port.Step = (*TaskletStep)(nil)
