package migration

import (
	"context"
	"io/fs"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
)

// Tables recording the applied migration versions.
const (
	FrameworkMigrationsTable = "batch_framework_migrations"
	AppMigrationsTable       = "batch_app_migrations"
)

// Migrator applies or reverts the migrations found under path in migrationFS.
// tableName is the table recording the applied versions.
type Migrator interface {
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
}

// MigratorProvider creates a Migrator for a connection.
type MigratorProvider interface {
	NewMigrator(dbConn database.DBConnection) Migrator
}
