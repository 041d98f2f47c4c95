// Package sqlite provides the gorm DBProvider for SQLite databases.
package sqlite

import (
	"errors"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	dbconfig "github.com/formula1dl/ingest/pkg/batch/adapter/database/config"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	"github.com/formula1dl/ingest/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString returns the database file path, with a busy timeout unless one is already given.
// Metadata writes and catalog transactions share the file, so writers wait instead of failing with SQLITE_BUSY.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if strings.Contains(c.Database, "_busy_timeout") {
		return c.Database
	}
	sep := "?"
	if strings.Contains(c.Database, "?") {
		sep = "&"
	}
	return c.Database + sep + "_busy_timeout=5000"
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
