package sql

import (
	"go.uber.org/fx"
)

// Module provides the SQL JobRepository as repository.JobRepository.
var Module = fx.Options(
	fx.Provide(NewJobRepository),
)
