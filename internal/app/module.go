// Package app wires the races ingestion application together.
package app

import (
	"io/fs"

	"go.uber.org/fx"

	"github.com/formula1dl/ingest/internal/catalog"
	appConfig "github.com/formula1dl/ingest/internal/config"
	"github.com/formula1dl/ingest/internal/query"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm/mysql"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm/postgres"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm/sqlite"
	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/adapter/storage/gcs"
	"github.com/formula1dl/ingest/pkg/batch/adapter/storage/local"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

// DBAdapterModules maps the names accepted in DB_ADAPTERS to their dialect modules.
// A "redshift" connection is served by the postgres module.
var DBAdapterModules = map[string]fx.Option{
	"sqlite":   sqlite.Module,
	"postgres": postgres.Module,
	"mysql":    mysql.Module,
}

// StorageAdapterModules maps the names accepted in STORAGE_ADAPTERS to their backend modules.
var StorageAdapterModules = map[string]fx.Option{
	"local": local.Module,
	"gcs":   gcs.Module,
}

// CatalogParams defines the dependencies for NewCatalog.
type CatalogParams struct {
	fx.In
	JobConfig  *appConfig.RacesJobConfig
	DBResolver database.DBConnectionResolver
	TxFactory  gormadapter.TransactionManagerFactory
}

// NewCatalog creates the catalog on the job's catalog_db_ref connection.
func NewCatalog(p CatalogParams) *catalog.Catalog {
	dbRef := p.JobConfig.CatalogDBRef
	return catalog.NewCatalog(p.DBResolver, p.TxFactory.NewTransactionManager(dbRef), dbRef)
}

// NewTableReader reads the registered races table back through the catalog.
func NewTableReader(c *catalog.Catalog, resolver storageAdapter.StorageConnectionResolver) *query.TableReader {
	return query.NewTableReader(c, resolver)
}

// AppMigrationsParams holds the raw migrations FS supplied by main.
type AppMigrationsParams struct {
	fx.In
	RawAppMigrationsFS fs.FS `name:"rawApplicationMigrationsFS"`
}

// NewAppMigrationsFS strips the "resources/migrations" prefix so that the tree starts
// at the per-database directories.
func NewAppMigrationsFS(p AppMigrationsParams) (fs.FS, error) {
	sub, err := fs.Sub(p.RawAppMigrationsFS, "resources/migrations")
	if err != nil {
		return nil, exception.NewBatchError("app", "failed to open application migrations", err, false, false)
	}
	return sub, nil
}

// Module provides the application-level components: the races job configuration,
// the catalog, the table reader and the catalog migrations.
var Module = fx.Options(
	fx.Provide(appConfig.NewRacesJobConfig),
	fx.Provide(NewCatalog),
	fx.Provide(NewTableReader),
	fx.Provide(fx.Annotate(
		NewAppMigrationsFS,
		fx.ResultTags(`name:"appMigrationsFS"`),
	)),
)
