// Package database declares the database connection abstractions used by the job repository,
// the migration tasklet and the table catalog.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/formula1dl/ingest/pkg/batch/adapter/database/config"
	coreAdapter "github.com/formula1dl/ingest/pkg/batch/core/adapter"
	tx "github.com/formula1dl/ingest/pkg/batch/core/tx"
)

// DBExecutor defines the read and write operations available on a connection.
type DBExecutor interface {
	tx.TxExecutor

	// ExecuteQuery runs a SELECT into target with equality conditions from query.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced runs a SELECT with optional ordering and limit.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// Count counts the records matching query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)
}

// DBConnection is a named database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection
	DBExecutor

	// IsTableNotExistError reports whether err says that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection pings the connection pool.
	RefreshConnection(ctx context.Context) error
	// Config returns the configuration the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves healthy connections by name.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection returns the connection called name, reconnecting it if its ping fails.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider opens and caches connections of one database type.
type DBProvider interface {
	// GetConnection returns the cached connection called name, opening it on first use.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes every connection opened by this provider.
	CloseAll() error
	// Type returns the database type served (e.g., "sqlite", "postgres").
	Type() string
	// ForceReconnect closes and reopens the connection called name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
