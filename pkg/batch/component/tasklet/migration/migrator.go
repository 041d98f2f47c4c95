package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// migratorImpl runs golang-migrate on a dedicated pool opened from the configuration of dbConn.
// Closing a migrate instance closes its *sql.DB, so the shared pool of dbConn is never handed over.
type migratorImpl struct {
	dbConn database.DBConnection
}

// NewMigrator creates a Migrator for dbConn.
func NewMigrator(dbConn database.DBConnection) Migrator {
	return &migratorImpl{dbConn: dbConn}
}

type migratorProviderImpl struct{}

// NewMigratorProvider creates the golang-migrate MigratorProvider.
func NewMigratorProvider() MigratorProvider {
	return &migratorProviderImpl{}
}

func (p *migratorProviderImpl) NewMigrator(dbConn database.DBConnection) Migrator {
	return NewMigrator(dbConn)
}

func (m *migratorImpl) openDedicatedDB() (*sql.DB, error) {
	dbConfig := m.dbConn.Config()
	factory, err := gormadapter.GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbConfig)
	if err != nil {
		return nil, err
	}
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	return gormDB.DB()
}

func databaseDriver(dbType string, sqlDB *sql.DB, tableName string) (migratedb.Driver, error) {
	switch dbType {
	case "postgres", "redshift":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: tableName})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: tableName})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: tableName})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

func (m *migratorImpl) run(ctx context.Context, migrationFS fs.FS, path string, command string, tableName string) error {
	dbType := m.dbConn.Type()
	logger.Infof("Executing migration '%s' on '%s' (Path: %s, Table: %s)", command, m.dbConn.Name(), path, tableName)

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	sqlDB, err := m.openDedicatedDB()
	if err != nil {
		_ = sourceDriver.Close()
		return err
	}

	dbDriver, err := databaseDriver(dbType, sqlDB, tableName)
	if err != nil {
		_ = sourceDriver.Close()
		_ = sqlDB.Close()
		return fmt.Errorf("failed to create migration database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, dbType, dbDriver)
	if err != nil {
		_ = sourceDriver.Close()
		_ = dbDriver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := mInstance.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("Failed to close migrate instance: source=%v, database=%v", srcErr, dbErr)
		}
	}()

	// GracefulStop makes migrate stop between two migrations once ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			mInstance.GracefulStop <- true
		case <-stop:
		}
	}()

	switch command {
	case "up":
		err = mInstance.Up()
	case "down":
		err = mInstance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if version, dirty, versionErr := mInstance.Version(); versionErr == nil {
			logger.Errorf("Migration '%s' failed at version %d (dirty: %t).", command, version, dirty)
		}
		return fmt.Errorf("migration '%s' failed (DB: %s, Path: %s): %w", command, dbType, path, err)
	}

	logger.Infof("Migration '%s' on '%s' completed successfully.", command, m.dbConn.Name())
	return nil
}

func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.run(ctx, migrationFS, path, "up", tableName)
}

func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.run(ctx, migrationFS, path, "down", tableName)
}
