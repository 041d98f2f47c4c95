package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/formula1dl/ingest/pkg/batch/core/domain/repository"
)

// Module provides InMemoryJobRepository as the repository.JobRepository.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryJobRepository,
			fx.As(new(repository.JobRepository)),
		),
	),
)
