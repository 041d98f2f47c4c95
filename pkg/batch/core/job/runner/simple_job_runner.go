package runner

import (
	"context"
	"time"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// SimpleJobRunner runs a Job in the calling goroutine and persists the final state of its execution.
type SimpleJobRunner struct {
	jobRepository  repository.JobRepository
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// NewSimpleJobRunner creates a SimpleJobRunner. nil recorder and tracer record nothing.
func NewSimpleJobRunner(
	repo repository.JobRepository,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *SimpleJobRunner {
	if metricRecorder == nil {
		metricRecorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &SimpleJobRunner{
		jobRepository:  repo,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

// Run executes job and always leaves jobExecution in a finished state.
func (r *SimpleJobRunner) Run(ctx context.Context, job port.Job, jobExecution *model.JobExecution) {
	ctx, endSpan := r.tracer.StartJobSpan(ctx, jobExecution)
	defer endSpan()

	if jobExecution.Status == model.BatchStatusStarting {
		jobExecution.MarkAsStarted()
		if err := r.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
			logger.Errorf("JobRunner: Failed to update JobExecution (ID: %s) status to STARTED: %v", jobExecution.ID, err)
		}
	}
	r.metricRecorder.RecordJobStart(ctx, jobExecution)

	err := job.Run(ctx, jobExecution, jobExecution.Parameters)

	if err != nil {
		r.tracer.RecordError(ctx, job.JobName(), err)
		if !jobExecution.Status.IsFinished() {
			jobExecution.MarkAsFailed(err)
		}
	} else if !jobExecution.Status.IsFinished() {
		jobExecution.MarkAsCompleted()
	}
	if jobExecution.EndTime == nil {
		now := time.Now()
		jobExecution.EndTime = &now
	}

	r.metricRecorder.RecordJobEnd(ctx, jobExecution)
	r.metricRecorder.RecordDuration(ctx, "job."+job.JobName(), jobExecution.EndTime.Sub(jobExecution.StartTime),
		map[string]string{"status": jobExecution.Status.String()})

	// A cancelled job context must not prevent the final state from being recorded.
	if updateErr := r.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); updateErr != nil {
		logger.Errorf("JobRunner: Failed to update final JobExecution (ID: %s) state: %v", jobExecution.ID, updateErr)
	}
	logger.Infof("Job '%s' (Execution ID: %s) finished with status %s.", job.JobName(), jobExecution.ID, jobExecution.Status)
}

var _ port.JobRunner = (*SimpleJobRunner)(nil)
