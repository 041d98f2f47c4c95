package usecase

import (
	"go.uber.org/fx"

	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
)

// Module is the Fx module for the JobRegistry, JobLauncher and JobExplorer.
var Module = fx.Options(
	fx.Provide(NewJobRegistry),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleJobLauncher,
		fx.As(new(port.JobLauncher)),
	)),
)
