package tasklet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/infrastructure/repository/inmemory"
)

type fakeTasklet struct {
	err    error
	status model.ExitStatus
	ec     model.ExecutionContext
	closed bool
}

func (f *fakeTasklet) Execute(ctx context.Context, se *model.StepExecution) (model.ExitStatus, error) {
	f.ec.Put("executed", true)
	return f.status, f.err
}
func (f *fakeTasklet) Close(ctx context.Context) error {
	f.closed = true
	return nil
}
func (f *fakeTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	f.ec = ec
	return nil
}
func (f *fakeTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return f.ec, nil
}

type recordingListener struct{ before, after int }

func (l *recordingListener) BeforeStep(ctx context.Context, se *model.StepExecution) { l.before++ }
func (l *recordingListener) AfterStep(ctx context.Context, se *model.StepExecution)  { l.after++ }

func run(t *testing.T, tasklet *fakeTasklet) (*model.StepExecution, *recordingListener, error) {
	t.Helper()
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	je := model.NewJobExecution("instance", "job", model.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	se := model.NewStepExecution(model.NewID(), je, "taskletStep")
	require.NoError(t, repo.SaveStepExecution(ctx, se))

	listener := &recordingListener{}
	step := NewTaskletStep("taskletStep", tasklet, repo, nil, nil)
	step.RegisterStepExecutionListener(listener)
	err := step.Execute(ctx, je, se)

	stored, findErr := repo.FindStepExecutionByID(ctx, se.ID)
	require.NoError(t, findErr)
	assert.Equal(t, se.Status, stored.Status)
	return se, listener, err
}

func TestTaskletStepCompletes(t *testing.T) {
	tasklet := &fakeTasklet{status: model.ExitStatusCompleted}
	se, listener, err := run(t, tasklet)

	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatusCompleted, se.ExitStatus)
	executed, _ := se.ExecutionContext.GetBool("executed")
	assert.True(t, executed)
	assert.True(t, tasklet.closed)
	assert.Equal(t, 1, listener.before)
	assert.Equal(t, 1, listener.after)
}

func TestTaskletStepKeepsCustomExitStatus(t *testing.T) {
	se, _, err := run(t, &fakeTasklet{status: model.ExitStatusNoOp})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatusNoOp, se.ExitStatus)
}

func TestTaskletStepFailure(t *testing.T) {
	tasklet := &fakeTasklet{err: errors.New("catalog unavailable")}
	se, listener, err := run(t, tasklet)

	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Contains(t, se.Failures[0], "catalog unavailable")
	assert.True(t, tasklet.closed)
	assert.Equal(t, 1, listener.after)
}
