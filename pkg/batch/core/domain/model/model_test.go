package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/pkg/batch/core/config"
)

func TestJobParametersHashIsOrderIndependent(t *testing.T) {
	a := NewJobParameters()
	a.Put("source", "raw/races.csv")
	a.Put("run.id", 3)

	b := NewJobParameters()
	b.Put("run.id", 3)
	b.Put("source", "raw/races.csv")

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.Put("run.id", 4)
	hc, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestJobParametersRoundTripEquality(t *testing.T) {
	params := NewJobParameters()
	params.Put("run.id", 7)
	params.Put("source", "raw/races.csv")

	v, err := params.Value()
	require.NoError(t, err)

	var scanned JobParameters
	require.NoError(t, scanned.Scan(v))

	assert.Equal(t, float64(7), scanned.Params["run.id"])
	assert.True(t, scanned.Equal(params))
	assert.True(t, params.Equal(scanned))

	id, ok := scanned.GetInt("run.id")
	assert.True(t, ok)
	assert.Equal(t, 7, id)

	partial := NewJobParameters()
	partial.Put("source", "raw/races.csv")
	assert.True(t, scanned.Contains(partial))
	assert.False(t, partial.Equal(scanned))
}

func TestJobParametersStringMasksSecrets(t *testing.T) {
	config.GlobalConfig = config.NewConfig()
	t.Cleanup(func() { config.GlobalConfig = nil })

	params := NewJobParameters()
	params.Put("password", "hunter2")
	params.Put("source", "raw/races.csv")

	s := params.String()
	assert.Contains(t, s, maskedValue)
	assert.NotContains(t, s, "hunter2")
	assert.Equal(t, "hunter2", params.Params["password"])
}

func TestExecutionContextScan(t *testing.T) {
	ec := NewExecutionContext()
	ec.Put("reader.readCount", 42)
	ec.Put("file", "races.csv")

	v, err := ec.Value()
	require.NoError(t, err)

	var scanned ExecutionContext
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	n, ok := scanned.GetInt("reader.readCount")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	s, ok := scanned.GetString("file")
	assert.True(t, ok)
	assert.Equal(t, "races.csv", s)

	var empty ExecutionContext
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Error(t, empty.Scan(12))

	cp := ec.Copy()
	cp.Put("file", "other")
	assert.Equal(t, "races.csv", ec["file"])
}

func TestFailureListScan(t *testing.T) {
	var fl FailureList
	require.NoError(t, fl.Scan(`["a","b"]`))
	assert.Equal(t, FailureList{"a", "b"}, fl)

	require.NoError(t, fl.Scan(nil))
	assert.Empty(t, fl)

	v, err := FailureList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestJobExecutionLifecycle(t *testing.T) {
	instance := NewJobInstance("racesIngestion", NewJobParameters())
	assert.NotEmpty(t, instance.ParametersHash)

	je := NewJobExecution(instance.ID, instance.JobName, instance.Parameters)
	assert.Equal(t, BatchStatusStarting, je.Status)

	je.MarkAsStarted()
	assert.Equal(t, BatchStatusStarted, je.Status)

	boom := errors.New("boom")
	je.MarkAsFailed(boom)
	je.AddFailureException(boom)
	assert.Equal(t, BatchStatusFailed, je.Status)
	assert.Equal(t, ExitStatusFailed, je.ExitStatus)
	assert.Equal(t, 1, je.ExitCode)
	assert.Equal(t, FailureList{"boom"}, je.Failures)
	assert.NotNil(t, je.EndTime)

	assert.Error(t, je.TransitionTo(BatchStatusStarted))
	assert.NoError(t, je.TransitionTo(BatchStatusAbandoned))
}

func TestStepExecutionLifecycle(t *testing.T) {
	je := NewJobExecution("instance", "racesIngestion", NewJobParameters())
	se := NewStepExecution(NewID(), je, "ingestRacesStep")

	assert.Same(t, se, je.StepExecutions[0])
	assert.Equal(t, "ingestRacesStep", je.CurrentStepName)

	se.MarkAsStarted()
	se.SkipReadCount = 2
	se.SkipProcessCount = 1
	assert.Equal(t, 3, se.SkipCount())

	se.MarkAsCompleted()
	assert.Equal(t, BatchStatusCompleted, se.Status)
	assert.Equal(t, ExitStatusCompleted, se.ExitStatus)
	assert.Error(t, se.TransitionTo(BatchStatusFailed))

	// Terminal steps can still be forced to FAILED; a warning is logged.
	se.MarkAsFailed(errors.New("late"))
	assert.Equal(t, BatchStatusFailed, se.Status)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitStatusCompleted.ExitCode())
	assert.Equal(t, 130, ExitStatusStopped.ExitCode())
	assert.Equal(t, 1, ExitStatusFailed.ExitCode())
	assert.True(t, BatchStatusStopped.IsFinished())
	assert.False(t, BatchStatusStarted.IsFinished())
}
