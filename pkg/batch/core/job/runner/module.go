package runner

import (
	"go.uber.org/fx"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
	metrics "github.com/formula1dl/ingest/pkg/batch/core/metrics"
)

// SimpleJobRunnerParams defines dependencies for SimpleJobRunner.
type SimpleJobRunnerParams struct {
	fx.In
	JobRepository  repository.JobRepository
	MetricRecorder metrics.MetricRecorder
	Tracer         metrics.Tracer
}

// NewJobRunner provides the SimpleJobRunner as the port.JobRunner.
func NewJobRunner(p SimpleJobRunnerParams) port.JobRunner {
	return NewSimpleJobRunner(p.JobRepository, p.MetricRecorder, p.Tracer)
}

// Module provides the JobRunner implementation.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
)
