package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formula1dl/ingest/internal/catalog"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	gormadapter "github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm"
	"github.com/formula1dl/ingest/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/formula1dl/ingest/pkg/batch/component/tasklet/migration"
	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	tx "github.com/formula1dl/ingest/pkg/batch/core/tx"
)

func newCatalog(t *testing.T, migrate bool) *catalog.Catalog {
	c, _ := setup(t, migrate)
	return c
}

func setup(t *testing.T, migrate bool) (*catalog.Catalog, tx.TransactionManager) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Ingest.Adapter.Database["catalog"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "catalog.db"),
	}
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.GormDBConnectionResolverParams{
		DBProviders: []database.DBProvider{sqlite.NewProvider(cfg)},
		Cfg:         cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })

	if migrate {
		tasklet, err := migration.NewMigrationTasklet(resolver, migration.NewMigratorProvider(),
			os.DirFS("../../cmd/ingest-races/resources/migrations"), migration.TaskletConfig{DBRef: "catalog"})
		require.NoError(t, err)
		_, err = tasklet.Execute(context.Background(), nil)
		require.NoError(t, err)
	}
	txManager := gormadapter.NewGormTransactionManager(resolver, "catalog")
	return catalog.NewCatalog(resolver, txManager, "catalog"), txManager
}

func racesTable(location string) catalog.TableDefinition {
	return catalog.TableDefinition{
		Schema:   "races",
		Name:     "races_ext",
		Location: location,
		Columns: []catalog.Column{
			{Name: "race_id", DataType: "INT32", Nullable: false},
			{Name: "race_year", DataType: "INT32", Nullable: true},
			{Name: "name", DataType: "STRING", Nullable: true},
		},
	}
}

func TestCatalog_CreateSchemaIsIdempotent(t *testing.T) {
	c := newCatalog(t, true)
	ctx := context.Background()

	exists, err := c.SchemaExists(ctx, "races")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.CreateSchema(ctx, "races"))
	require.NoError(t, c.CreateSchema(ctx, "races"))

	exists, err = c.SchemaExists(ctx, "races")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, c.CreateSchema(ctx, ""))
	assert.Error(t, c.CreateSchema(ctx, "a.b"))
}

func TestCatalog_RegisterAndLookup(t *testing.T) {
	c := newCatalog(t, true)
	ctx := context.Background()
	require.NoError(t, c.CreateSchema(ctx, "races"))

	require.NoError(t, c.RegisterTable(ctx, racesTable("processed/races")))

	def, err := c.LookupTable(ctx, "races.races_ext")
	require.NoError(t, err)
	assert.Equal(t, "races.races_ext", def.QualifiedName())
	assert.Equal(t, "processed/races", def.Location)
	assert.Equal(t, catalog.FormatParquet, def.Format)
	require.Len(t, def.Columns, 3)
	assert.Equal(t, catalog.Column{Name: "race_id", DataType: "INT32", Nullable: false}, def.Columns[0])
	assert.Equal(t, "name", def.Columns[2].Name)
	created := def.CreateTime

	replacement := racesTable("processed/races_v2")
	replacement.Columns = replacement.Columns[:2]
	require.NoError(t, c.RegisterTable(ctx, replacement))

	def, err = c.LookupTable(ctx, "races.races_ext")
	require.NoError(t, err)
	assert.Equal(t, "processed/races_v2", def.Location)
	assert.Len(t, def.Columns, 2, "columns are replaced, not merged")
	assert.True(t, def.CreateTime.Equal(created), "creation time is kept")

	tables, err := c.ListTables(ctx, "races")
	require.NoError(t, err)
	assert.Equal(t, []string{"races_ext"}, tables)
}

func TestCatalog_RegisterRequiresSchema(t *testing.T) {
	c := newCatalog(t, true)
	err := c.RegisterTable(context.Background(), racesTable("processed/races"))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrSchemaNotFound)
}

func TestCatalog_RegisterValidatesDefinition(t *testing.T) {
	c := newCatalog(t, true)
	assert.Error(t, c.RegisterTable(context.Background(), catalog.TableDefinition{Name: "races_ext", Location: "x"}))
	assert.Error(t, c.RegisterTable(context.Background(), catalog.TableDefinition{Schema: "races", Name: "races_ext"}))
}

func TestCatalog_LookupMissing(t *testing.T) {
	c := newCatalog(t, true)
	ctx := context.Background()

	_, err := c.LookupTable(ctx, "races.races_ext")
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)

	_, err = c.LookupTable(ctx, "races_ext")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrTableNotFound)
}

func TestCatalog_LookupBeforeMigration(t *testing.T) {
	c := newCatalog(t, false)
	_, err := c.LookupTable(context.Background(), "races.races_ext")
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
}

func TestCatalog_RegisterInOuterTransaction(t *testing.T) {
	c, txManager := setup(t, true)
	ctx := context.Background()
	require.NoError(t, c.CreateSchema(ctx, "races"))

	outer, err := txManager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, c.RegisterTable(tx.WithTx(ctx, outer), racesTable("processed/races")))
	require.NoError(t, txManager.Rollback(outer))

	_, err = c.LookupTable(ctx, "races.races_ext")
	assert.ErrorIs(t, err, catalog.ErrTableNotFound, "rolled back with the outer transaction")
}

func TestParseQualifiedName(t *testing.T) {
	schemaName, tableName, err := catalog.ParseQualifiedName("races.races_ext")
	require.NoError(t, err)
	assert.Equal(t, "races", schemaName)
	assert.Equal(t, "races_ext", tableName)

	for _, bad := range []string{"", "races", ".races_ext", "races.", "a.b.c"} {
		_, _, err := catalog.ParseQualifiedName(bad)
		assert.Error(t, err, bad)
	}
}
