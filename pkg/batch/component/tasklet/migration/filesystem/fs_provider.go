// Package filesystem embeds the migrations of the batch metadata tables.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

//go:embed resource
var rawFrameworkMigrationFS embed.FS

// ProvideFrameworkMigrationsFS returns the framework migrations, one directory per database type.
func ProvideFrameworkMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawFrameworkMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for framework migration FS: %v", err)
	}
	return subFS
}
