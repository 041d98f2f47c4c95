package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/core/job/runner"
	"github.com/formula1dl/ingest/pkg/batch/core/support/incrementer"
	"github.com/formula1dl/ingest/pkg/batch/infrastructure/repository/inmemory"
)

type countingStep struct{ runs int }

func (s *countingStep) ID() string       { return "count" }
func (s *countingStep) StepName() string { return "count" }
func (s *countingStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	s.runs++
	se.MarkAsStarted()
	se.MarkAsCompleted()
	return nil
}

func newLauncher(repo *inmemory.InMemoryJobRepository, registry *JobRegistry) *SimpleJobLauncher {
	return NewSimpleJobLauncher(repo, registry, runner.NewSimpleJobRunner(repo, nil, nil))
}

func TestLaunchWithIncrementerCreatesNewInstances(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	step := &countingStep{}
	registry := NewJobRegistry()
	registry.Register(runner.NewSimpleJob("racesJob", repo, step), incrementer.NewRunIDIncrementer(""))
	launcher := newLauncher(repo, registry)

	first, err := launcher.Launch(ctx, "racesJob", model.NewJobParameters())
	require.NoError(t, err)
	second, err := launcher.Launch(ctx, "racesJob", model.NewJobParameters())
	require.NoError(t, err)

	assert.Equal(t, model.BatchStatusCompleted, first.Status)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
	runID, _ := second.Parameters.GetInt(incrementer.DefaultRunIDKey)
	assert.Equal(t, 2, runID)
	assert.Equal(t, 2, step.runs)

	explorer := NewSimpleJobExplorer(repo)
	count, err := explorer.GetJobInstanceCount(ctx, "racesJob")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	executions, err := explorer.GetJobExecutions(ctx, second.JobInstanceID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, second.ID, executions[0].ID)
}

func TestLaunchWithoutIncrementerReusesInstance(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	registry := NewJobRegistry()
	registry.Register(runner.NewSimpleJob("racesJob", repo, &countingStep{}), nil)
	launcher := newLauncher(repo, registry)

	params := model.NewJobParameters()
	params.Put("source", "races.csv")
	first, err := launcher.Launch(ctx, "racesJob", params)
	require.NoError(t, err)
	second, err := launcher.Launch(ctx, "racesJob", params)
	require.NoError(t, err)

	assert.Equal(t, first.JobInstanceID, second.JobInstanceID)
	assert.NotEqual(t, first.ID, second.ID)

	executions, err := NewSimpleJobExplorer(repo).GetJobExecutions(ctx, first.JobInstanceID)
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

// chunkStep records item counts the way a chunk step does.
type chunkStep struct {
	repo *inmemory.InMemoryJobRepository
}

func (s *chunkStep) ID() string       { return "ingestRaces" }
func (s *chunkStep) StepName() string { return "ingestRaces" }
func (s *chunkStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	se.MarkAsStarted()
	se.ReadCount = 6
	se.WriteCount = 5
	se.SkipReadCount = 1
	se.MarkAsCompleted()
	return s.repo.UpdateStepExecution(ctx, se)
}

func TestExplorerSummarizesSteps(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	registry := NewJobRegistry()
	registry.Register(runner.NewSimpleJob("racesJob", repo, &chunkStep{repo: repo}), nil)

	execution, err := newLauncher(repo, registry).Launch(ctx, "racesJob", model.NewJobParameters())
	require.NoError(t, err)

	summaries, err := NewSimpleJobExplorer(repo).SummarizeSteps(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, StepSummary{
		StepName: "ingestRaces",
		Status:   model.BatchStatusCompleted,
		Read:     6,
		Written:  5,
		Skipped:  1,
	}, summaries[0])

	_, err = NewSimpleJobExplorer(repo).SummarizeSteps(ctx, "missing")
	assert.Error(t, err)
}

func TestLaunchUnknownJob(t *testing.T) {
	launcher := newLauncher(inmemory.NewInMemoryJobRepository(), NewJobRegistry())
	_, err := launcher.Launch(context.Background(), "missing", model.NewJobParameters())
	assert.Error(t, err)
}

func TestLaunchRejectsInvalidParameters(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	job := runner.NewSimpleJob("racesJob", repo, &countingStep{})
	job.SetParameterValidator(func(model.JobParameters) error { return errors.New("invalid") })
	registry := NewJobRegistry()
	registry.Register(job, nil)

	_, err := newLauncher(repo, registry).Launch(context.Background(), "racesJob", model.NewJobParameters())
	assert.Error(t, err)
	count, _ := repo.GetJobInstanceCount(context.Background(), "racesJob")
	assert.Equal(t, 0, count)
}

func TestJobRegistryNames(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	registry := NewJobRegistry()
	registry.Register(runner.NewSimpleJob("b", repo), nil)
	registry.Register(runner.NewSimpleJob("a", repo), nil)
	assert.Equal(t, []string{"a", "b"}, registry.JobNames())
}
