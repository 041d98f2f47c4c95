package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/core/metrics"
)

type mockTracer struct {
	metrics.NoOpTracer
	mock.Mock
}

func (m *mockTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	m.Called(name, attributes)
}

func TestTracingStepListener_RecordsCounters(t *testing.T) {
	tracer := &mockTracer{}
	je := model.NewJobExecution("instance-1", "racesIngestion", model.NewJobParameters())
	se := model.NewStepExecution("step-1", je, "ingestRaces")
	se.ReadCount, se.WriteCount, se.SkipReadCount = 3, 2, 1
	se.MarkAsCompleted()

	tracer.On("RecordEvent", "step.finished", map[string]interface{}{
		"step.status":      "COMPLETED",
		"step.read_count":  3,
		"step.write_count": 2,
		"step.skip_count":  1,
	}).Once()

	l := NewTracingStepListener(tracer)
	l.BeforeStep(context.Background(), se)
	l.AfterStep(context.Background(), se)
	tracer.AssertExpectations(t)
}

func TestTracingSkipListener_RecordsPhase(t *testing.T) {
	tracer := &mockTracer{}
	var phases []string
	tracer.On("RecordEvent", "item.skipped", mock.Anything).Run(func(args mock.Arguments) {
		phases = append(phases, args.Get(1).(map[string]interface{})["skip.phase"].(string))
	})

	l := NewTracingSkipListener(tracer)
	l.OnSkipRead(context.Background(), errors.New("bad row"))
	l.OnSkipProcess(context.Background(), "row", errors.New("bad value"))
	assert.Equal(t, []string{"read", "process"}, phases)
}

func TestTracingJobListener_RecordsOutcome(t *testing.T) {
	tracer := &mockTracer{}
	je := model.NewJobExecution("instance-1", "racesIngestion", model.NewJobParameters())
	tracer.On("RecordEvent", "job.started", mock.Anything).Once()
	tracer.On("RecordEvent", "job.finished", mock.MatchedBy(func(attrs map[string]interface{}) bool {
		return attrs["job.status"] == "FAILED" && attrs["job.failures"] == 1
	})).Once()

	l := NewTracingJobListener(tracer)
	l.BeforeJob(context.Background(), je)
	je.MarkAsFailed(errors.New("boom"))
	l.AfterJob(context.Background(), je)
	tracer.AssertExpectations(t)
}
