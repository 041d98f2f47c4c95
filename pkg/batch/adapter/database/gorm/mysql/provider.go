// Package mysql provides the gorm DBProvider for MySQL databases.
package mysql

import (
	"fmt"

	drivermysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	dbconfig "github.com/formula1dl/ingest/pkg/batch/adapter/database/config"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	"github.com/formula1dl/ingest/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// MySQLDBProvider implements database.DBProvider for MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString builds a go-sql-driver DSN. Time columns are parsed into time.Time.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := drivermysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.MultiStatements = true
	return dsn.FormatDSN()
}

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "mysql")}
}
