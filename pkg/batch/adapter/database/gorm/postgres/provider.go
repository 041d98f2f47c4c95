// Package postgres provides the gorm DBProvider for PostgreSQL and Redshift databases.
package postgres

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	dbconfig "github.com/formula1dl/ingest/pkg/batch/adapter/database/config"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	"github.com/formula1dl/ingest/pkg/batch/core/config"
)

func init() {
	factory := func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	}
	gormadapter.RegisterDialector("postgres", factory)
	gormadapter.RegisterDialector("redshift", factory)
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL and Redshift connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString builds the key/value DSN expected by gorm.io/driver/postgres.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	return strings.Join(parts, " ")
}

// NewProvider creates the PostgreSQL DBProvider. It also serves "redshift" connections.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
