// Package logging provides listeners that log job, step, chunk and skip events.
package logging

import (
	"context"

	"go.uber.org/fx"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

// BeforeJob logs the job parameters. Keys under security.masked_parameter_keys are masked.
func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if jobExecution.Status == model.BatchStatusFailed {
		logger.Errorf("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s, Failures: %v",
			jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, jobExecution.Failures)
		return
	}
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Write: %d, Skip: %d",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus,
		stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.SkipCount())
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", stepExecution.StepName)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d", stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)

// --- Skip Listener ---

type LoggingSkipListener struct{}

func NewLoggingSkipListener() *LoggingSkipListener {
	return &LoggingSkipListener{}
}

func (l *LoggingSkipListener) OnSkipRead(ctx context.Context, err error) {
	logger.Warnf("SkipListener: OnSkipRead - Skipping row: %s", exception.ExtractErrorMessage(err))
}

func (l *LoggingSkipListener) OnSkipProcess(ctx context.Context, item interface{}, err error) {
	logger.Warnf("SkipListener: OnSkipProcess - Skipping item: %+v, Error: %s", item, exception.ExtractErrorMessage(err))
}

var _ port.SkipListener = (*LoggingSkipListener)(nil)

// Module contributes the logging listeners to the job, step, chunk and skip listener groups.
var Module = fx.Provide(
	fx.Annotate(NewLoggingJobListener, fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"job_listeners"`)),
	fx.Annotate(NewLoggingStepListener, fx.As(new(port.StepExecutionListener)), fx.ResultTags(`group:"step_listeners"`)),
	fx.Annotate(NewLoggingChunkListener, fx.As(new(port.ChunkListener)), fx.ResultTags(`group:"chunk_listeners"`)),
	fx.Annotate(NewLoggingSkipListener, fx.As(new(port.SkipListener)), fx.ResultTags(`group:"skip_listeners"`)),
)
