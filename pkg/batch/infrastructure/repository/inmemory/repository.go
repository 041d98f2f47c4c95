// Package inmemory provides a JobRepository that keeps all batch metadata in maps.
// It is used when no metadata database is configured and in tests.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

// InMemoryJobRepository holds copies of the saved objects so callers cannot mutate stored state.
type InMemoryJobRepository struct {
	jobInstances   map[string]*model.JobInstance
	jobExecutions  map[string]*model.JobExecution
	stepExecutions map[string]*model.StepExecution
	checkpointData map[string]*model.CheckpointData
	mu             sync.RWMutex
}

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
		checkpointData: make(map[string]*model.CheckpointData),
	}
}

func copyJobExecution(je *model.JobExecution) *model.JobExecution {
	c := *je
	c.Parameters = je.Parameters.Copy()
	c.ExecutionContext = je.ExecutionContext.Copy()
	c.Failures = append(model.FailureList(nil), je.Failures...)
	c.StepExecutions = make([]*model.StepExecution, 0)
	return &c
}

func copyStepExecution(se *model.StepExecution) *model.StepExecution {
	c := *se
	c.JobExecution = nil
	c.ExecutionContext = se.ExecutionContext.Copy()
	c.Failures = append(model.FailureList(nil), se.Failures...)
	return &c
}

// stepsOf returns copies of the step executions of jobExecutionID ordered by start time. Callers hold mu.
func (r *InMemoryJobRepository) stepsOf(jobExecutionID string) []*model.StepExecution {
	steps := make([]*model.StepExecution, 0)
	for _, se := range r.stepExecutions {
		if se.JobExecutionID == jobExecutionID {
			steps = append(steps, copyStepExecution(se))
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StartTime.Before(steps[j].StartTime)
	})
	return steps
}

func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[jobInstance.ID]; exists {
		return fmt.Errorf("JobInstance with ID %s already exists", jobInstance.ID)
	}
	c := *jobInstance
	c.Parameters = jobInstance.Parameters.Copy()
	r.jobInstances[jobInstance.ID] = &c
	return nil
}

func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ji, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	c := *ji
	return &c, nil
}

func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ji := range r.jobInstances {
		if ji.JobName == jobName && ji.Parameters.Equal(params) {
			c := *ji
			return &c, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

func (r *InMemoryJobRepository) FindLatestJobInstance(ctx context.Context, jobName string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.JobInstance
	for _, ji := range r.jobInstances {
		if ji.JobName == jobName && (latest == nil || ji.CreateTime.After(latest.CreateTime)) {
			latest = ji
		}
	}
	if latest == nil {
		return nil, repository.ErrJobInstanceNotFound
	}
	c := *latest
	return &c, nil
}

func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, ji := range r.jobInstances {
		if ji.JobName == jobName {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return fmt.Errorf("JobExecution with ID %s already exists", jobExecution.ID)
	}
	r.jobExecutions[jobExecution.ID] = copyJobExecution(jobExecution)
	return nil
}

// UpdateJobExecution applies the same version check as the SQL repository.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.jobExecutions[jobExecution.ID]
	if !exists {
		return repository.ErrJobExecutionNotFound
	}
	if stored.Version != jobExecution.Version {
		return exception.NewOptimisticLockingFailure("inmemory_repository",
			fmt.Sprintf("JobExecution (ID: %s) version %d does not match stored version %d", jobExecution.ID, jobExecution.Version, stored.Version), nil)
	}
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	r.jobExecutions[jobExecution.ID] = copyJobExecution(jobExecution)
	return nil
}

func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	je, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	c := copyJobExecution(je)
	c.StepExecutions = r.stepsOf(je.ID)
	return c, nil
}

func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobInstanceID == jobInstanceID && (latest == nil || je.CreateTime.After(latest.CreateTime)) {
			latest = je
		}
	}
	if latest == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	c := copyJobExecution(latest)
	c.StepExecutions = r.stepsOf(latest.ID)
	return c, nil
}

// FindJobExecutionsByJobInstance returns the executions latest first, without step executions.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var executions []*model.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobInstanceID == jobInstance.ID {
			executions = append(executions, copyJobExecution(je))
		}
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[j].CreateTime.Before(executions[i].CreateTime)
	})
	return executions, nil
}

func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; exists {
		return fmt.Errorf("StepExecution with ID %s already exists", stepExecution.ID)
	}
	r.stepExecutions[stepExecution.ID] = copyStepExecution(stepExecution)
	return nil
}

func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; !exists {
		return repository.ErrStepExecutionNotFound
	}
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	r.stepExecutions[stepExecution.ID] = copyStepExecution(stepExecution)
	return nil
}

func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	se, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return copyStepExecution(se), nil
}

func (r *InMemoryJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stepsOf(jobExecutionID), nil
}

// SaveCheckpointData overwrites any checkpoint stored for the same step execution.
func (r *InMemoryJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *data
	c.ExecutionContext = data.ExecutionContext.Copy()
	c.LastUpdated = time.Now()
	r.checkpointData[data.StepExecutionID] = &c
	return nil
}

func (r *InMemoryJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.checkpointData[stepExecutionID]
	if !ok {
		return nil, repository.ErrCheckpointDataNotFound
	}
	c := *data
	c.ExecutionContext = data.ExecutionContext.Copy()
	return &c, nil
}

// Close holds no resources.
func (r *InMemoryJobRepository) Close() error {
	return nil
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)
