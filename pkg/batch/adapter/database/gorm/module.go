package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// Module provides the connection resolver and the transaction manager factory.
// Dialect providers come from the sqlite, postgres and mysql modules.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Invoke(func(lc fx.Lifecycle, r *GormDBConnectionResolver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				logger.Debugf("Closing all database connections.")
				return r.CloseAll()
			},
		})
	}),
)
