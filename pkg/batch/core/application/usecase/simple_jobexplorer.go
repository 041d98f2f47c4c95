package usecase

import (
	"context"
	"fmt"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	job "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

const explorerModule = "job_explorer"

// StepSummary is the outcome of one step execution.
type StepSummary struct {
	StepName string
	Status   model.JobStatus
	Read     int
	Written  int
	Filtered int
	// Skipped adds up read, process and write skips.
	Skipped  int
}

// SimpleJobExplorer answers JobExplorer queries from a JobRepository.
type SimpleJobExplorer struct {
	jobRepository job.JobRepository
}

var _ JobExplorer = (*SimpleJobExplorer)(nil)

func NewSimpleJobExplorer(jobRepository job.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: jobRepository}
}

func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	je, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, fmt.Sprintf("failed to load job execution '%s'", executionID), err, false, false)
	}
	return je, nil
}

func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	instance, err := e.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, fmt.Sprintf("failed to load job instance '%s'", instanceID), err, false, false)
	}
	executions, err := e.jobRepository.FindJobExecutionsByJobInstance(ctx, instance)
	if err != nil {
		return nil, exception.NewBatchError(explorerModule, fmt.Sprintf("failed to load executions of job instance '%s'", instanceID), err, false, false)
	}
	return executions, nil
}

func (e *SimpleJobExplorer) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	count, err := e.jobRepository.GetJobInstanceCount(ctx, jobName)
	if err != nil {
		return 0, exception.NewBatchError(explorerModule, fmt.Sprintf("failed to count instances of job '%s'", jobName), err, false, false)
	}
	return count, nil
}

func (e *SimpleJobExplorer) SummarizeSteps(ctx context.Context, executionID string) ([]StepSummary, error) {
	je, err := e.GetJobExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	summaries := make([]StepSummary, 0, len(je.StepExecutions))
	for _, se := range je.StepExecutions {
		summaries = append(summaries, StepSummary{
			StepName: se.StepName,
			Status:   se.Status,
			Read:     se.ReadCount,
			Written:  se.WriteCount,
			Filtered: se.FilterCount,
			Skipped:  se.SkipReadCount + se.SkipProcessCount + se.SkipWriteCount,
		})
	}
	return summaries, nil
}
