package job

import (
	"go.uber.org/fx"

	"github.com/formula1dl/ingest/pkg/batch/core/application/usecase"
	"github.com/formula1dl/ingest/pkg/batch/core/job/runner"
	"github.com/formula1dl/ingest/pkg/batch/core/support/incrementer"
)

// RegisterRacesJob makes the job launchable by name. Every launch gets a new run.id.
func RegisterRacesJob(registry *usecase.JobRegistry, job *runner.SimpleJob) {
	registry.Register(job, incrementer.NewRunIDIncrementer(incrementer.DefaultRunIDKey))
}

// Module provides and registers the races ingestion job.
var Module = fx.Options(
	fx.Provide(NewRacesJob),
	fx.Invoke(RegisterRacesJob),
)
