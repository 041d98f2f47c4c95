// Package migration runs golang-migrate schema migrations, as a tasklet or at application start.
package migration

import (
	"context"
	"io/fs"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

const taskletName = "migration_tasklet"

// TaskletConfig configures a MigrationTasklet.
type TaskletConfig struct {
	// DBRef is the name of the database connection to migrate.
	DBRef string `yaml:"db_ref"`
	// Dir is the directory of the migration scripts in the FS. Defaults to the database type.
	Dir string `yaml:"dir"`
	// Command is "up" (default) or "down".
	Command string `yaml:"command"`
	// IsFramework selects the framework migrations table instead of the application one.
	IsFramework bool `yaml:"is_framework"`
}

// MigrationTasklet applies the migrations of one fs.FS to one database connection.
type MigrationTasklet struct {
	dbResolver       database.DBConnectionResolver
	migratorProvider MigratorProvider
	migrationFS      fs.FS
	cfg              TaskletConfig
	ec               model.ExecutionContext
}

// NewMigrationTasklet creates a MigrationTasklet.
func NewMigrationTasklet(
	dbResolver database.DBConnectionResolver,
	migratorProvider MigratorProvider,
	migrationFS fs.FS,
	cfg TaskletConfig,
) (*MigrationTasklet, error) {
	if cfg.DBRef == "" {
		return nil, exception.NewBatchErrorf(taskletName, "property 'db_ref' is required for MigrationTasklet")
	}
	if migrationFS == nil {
		return nil, exception.NewBatchErrorf(taskletName, "a migration FS is required for MigrationTasklet")
	}
	if cfg.Command == "" {
		cfg.Command = "up"
	}
	logger.Debugf("MigrationTasklet initialized: DB=%s, Dir=%s, Command=%s, IsFramework=%t", cfg.DBRef, cfg.Dir, cfg.Command, cfg.IsFramework)

	return &MigrationTasklet{
		dbResolver:       dbResolver,
		migratorProvider: migratorProvider,
		migrationFS:      migrationFS,
		cfg:              cfg,
		ec:               model.NewExecutionContext(),
	}, nil
}

// Execute runs the configured command, then reconnects so that the pool sees the new schema.
func (t *MigrationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	dbConn, err := t.dbResolver.ResolveDBConnection(ctx, t.cfg.DBRef)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError(taskletName, "failed to resolve DB connection '"+t.cfg.DBRef+"'", err, false, false)
	}

	migrationTable := AppMigrationsTable
	if t.cfg.IsFramework {
		migrationTable = FrameworkMigrationsTable
	}

	migrationDir := t.cfg.Dir
	if migrationDir == "" {
		migrationDir = DirFor(dbConn.Type())
		logger.Debugf("Using '%s' as migration directory.", migrationDir)
	}

	migrator := t.migratorProvider.NewMigrator(dbConn)
	switch t.cfg.Command {
	case "up":
		err = migrator.Up(ctx, t.migrationFS, migrationDir, migrationTable)
	case "down":
		err = migrator.Down(ctx, t.migrationFS, migrationDir, migrationTable)
	default:
		return model.ExitStatusFailed, exception.NewBatchErrorf(taskletName, "unknown migration command: %s", t.cfg.Command)
	}
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchErrorf(taskletName, "migration '%s' failed", t.cfg.Command, err)
	}

	t.ec.Put("migration.table", migrationTable)
	t.ec.Put("migration.dir", migrationDir)
	return model.ExitStatusCompleted, nil
}

// DirFor returns the migration directory used for a database type.
func DirFor(dbType string) string {
	if dbType == "redshift" {
		return "postgres"
	}
	return dbType
}

func (t *MigrationTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *MigrationTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	t.ec = ec
	return nil
}

func (t *MigrationTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}

var _ port.Tasklet = (*MigrationTasklet)(nil)
