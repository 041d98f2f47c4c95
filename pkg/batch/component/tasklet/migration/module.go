package migration

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	"github.com/formula1dl/ingest/pkg/batch/component/tasklet/migration/filesystem"
	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// FrameworkMigrationParams holds the dependencies of RegisterFrameworkMigration.
type FrameworkMigrationParams struct {
	fx.In
	Lifecycle        fx.Lifecycle
	Cfg              *config.Config
	DBResolver       database.DBConnectionResolver
	MigratorProvider MigratorProvider
	FrameworkFS      fs.FS `name:"frameworkMigrationsFS"`
}

// RegisterFrameworkMigration migrates the job repository tables on start, before any job is launched.
// Nothing runs when no job repository database is configured.
func RegisterFrameworkMigration(p FrameworkMigrationParams) error {
	dbRef := p.Cfg.Ingest.Infrastructure.JobRepositoryDBRef
	if !p.Cfg.HasJobRepositoryDB() {
		logger.Debugf("No job repository database configured. Skipping framework migrations.")
		return nil
	}
	t, err := NewMigrationTasklet(p.DBResolver, p.MigratorProvider, p.FrameworkFS, TaskletConfig{
		DBRef:       dbRef,
		IsFramework: true,
	})
	if err != nil {
		return err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := t.Execute(ctx, nil)
			return err
		},
	})
	return nil
}

// Module provides the MigratorProvider and the framework migrations FS, and migrates the
// job repository database on start.
var Module = fx.Options(
	filesystem.Module,
	fx.Provide(NewMigratorProvider),
	fx.Invoke(RegisterFrameworkMigration),
)
