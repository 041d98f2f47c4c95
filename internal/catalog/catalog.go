// Package catalog keeps the metadata of the tables produced by ingestion jobs:
// schemas, tables with their location and format, and columns.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	tx "github.com/formula1dl/ingest/pkg/batch/core/tx"
	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

const moduleName = "catalog"

var (
	// ErrTableNotFound is returned by LookupTable for an unregistered table.
	ErrTableNotFound = errors.New("table not found")
	// ErrSchemaNotFound is returned when registering a table in a schema that was never created.
	ErrSchemaNotFound = errors.New("schema not found")
)

// FormatParquet is the storage format of tables written by the parquet writer.
const FormatParquet = "PARQUET"

// Column describes a table column.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// TableDefinition is the registered metadata of a table.
type TableDefinition struct {
	Schema string
	Name   string
	// Location is "<storage_ref>/<prefix>".
	Location   string
	Format     string
	Columns    []Column
	CreateTime time.Time
	UpdateTime time.Time
}

// QualifiedName returns "<schema>.<table>".
func (d TableDefinition) QualifiedName() string {
	return d.Schema + "." + d.Name
}

// ParseQualifiedName splits "<schema>.<table>".
func ParseQualifiedName(qualified string) (schemaName, tableName string, err error) {
	schemaName, tableName, ok := strings.Cut(qualified, ".")
	if !ok || schemaName == "" || tableName == "" || strings.Contains(tableName, ".") {
		return "", "", fmt.Errorf("invalid table name %q, expected <schema>.<table>", qualified)
	}
	return schemaName, tableName, nil
}

// Catalog stores table metadata in the database connection called dbRef.
type Catalog struct {
	dbResolver database.DBConnectionResolver
	txManager  tx.TransactionManager
	dbRef      string
	now        func() time.Time
}

// NewCatalog creates a Catalog. txManager must begin transactions on dbRef.
func NewCatalog(dbResolver database.DBConnectionResolver, txManager tx.TransactionManager, dbRef string) *Catalog {
	return &Catalog{
		dbResolver: dbResolver,
		txManager:  txManager,
		dbRef:      dbRef,
		now:        time.Now,
	}
}

func (c *Catalog) conn(ctx context.Context) (database.DBConnection, error) {
	conn, err := c.dbResolver.ResolveDBConnection(ctx, c.dbRef)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve database connection '%s'", c.dbRef), err, false, false)
	}
	return conn, nil
}

// CreateSchema creates schemaName if it does not exist yet.
func (c *Catalog) CreateSchema(ctx context.Context, schemaName string) error {
	if schemaName == "" || strings.Contains(schemaName, ".") {
		return exception.NewBatchErrorf(moduleName, "invalid schema name %q", schemaName)
	}
	conn, err := c.conn(ctx)
	if err != nil {
		return err
	}
	var executor tx.TxExecutor = conn
	if t, ok := tx.FromContext(ctx); ok {
		executor = t
	}

	entity := &SchemaEntity{SchemaName: schemaName, CreateTime: c.now().UTC()}
	created, err := executor.ExecuteUpsert(ctx, entity, entity.TableName(), []string{"schema_name"}, nil)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to create schema '%s'", schemaName), err, false, false)
	}
	if created > 0 {
		logger.Infof("Catalog: created schema '%s'.", schemaName)
	} else {
		logger.Debugf("Catalog: schema '%s' already exists.", schemaName)
	}
	return nil
}

// SchemaExists reports whether schemaName was created.
func (c *Catalog) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	conn, err := c.conn(ctx)
	if err != nil {
		return false, err
	}
	count, err := conn.Count(ctx, &SchemaEntity{}, map[string]interface{}{"schema_name": schemaName})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return false, nil
		}
		return false, exception.NewBatchError(moduleName, fmt.Sprintf("failed to look up schema '%s'", schemaName), err, false, false)
	}
	return count > 0, nil
}

// RegisterTable creates or replaces the metadata of def in one transaction.
// The creation time of an existing table is kept; its columns are replaced.
func (c *Catalog) RegisterTable(ctx context.Context, def TableDefinition) error {
	if def.Schema == "" || def.Name == "" {
		return exception.NewBatchErrorf(moduleName, "table definition needs a schema and a name")
	}
	if def.Location == "" {
		return exception.NewBatchErrorf(moduleName, "table '%s' has no location", def.QualifiedName())
	}
	if def.Format == "" {
		def.Format = FormatParquet
	}

	exists, err := c.SchemaExists(ctx, def.Schema)
	if err != nil {
		return err
	}
	if !exists {
		return exception.NewBatchErrorf(moduleName, "cannot register '%s'", def.QualifiedName(), ErrSchemaNotFound)
	}

	now := c.now().UTC()
	table := &TableEntity{
		SchemaName: def.Schema,
		Name:       def.Name,
		Location:   def.Location,
		Format:     strings.ToUpper(def.Format),
		CreateTime: now,
		UpdateTime: now,
	}
	columns := make([]ColumnEntity, 0, len(def.Columns))
	for i, col := range def.Columns {
		columns = append(columns, ColumnEntity{
			SchemaName: def.Schema,
			Table:      def.Name,
			ColumnName: col.Name,
			Position:   i,
			DataType:   col.DataType,
			Nullable:   col.Nullable,
		})
	}

	err = c.inTx(ctx, func(executor tx.TxExecutor) error {
		if _, err := executor.ExecuteUpsert(ctx, table, table.TableName(),
			[]string{"schema_name", "table_name"}, []string{"location", "format", "update_time"}); err != nil {
			return fmt.Errorf("upsert table: %w", err)
		}
		if _, err := executor.ExecuteUpdate(ctx, &ColumnEntity{}, "DELETE", ColumnEntity{}.TableName(),
			map[string]interface{}{"schema_name": def.Schema, "table_name": def.Name}); err != nil {
			return fmt.Errorf("delete columns: %w", err)
		}
		if len(columns) == 0 {
			return nil
		}
		if _, err := executor.ExecuteUpdate(ctx, &columns, "CREATE", ColumnEntity{}.TableName(), nil); err != nil {
			return fmt.Errorf("insert columns: %w", err)
		}
		return nil
	})
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to register table '%s'", def.QualifiedName()), err, false, false)
	}
	logger.Infof("Catalog: registered table '%s' (%s, %d columns) at '%s'.", def.QualifiedName(), table.Format, len(columns), def.Location)
	return nil
}

// inTx runs fn in the transaction carried by ctx, or in a new one.
func (c *Catalog) inTx(ctx context.Context, fn func(tx.TxExecutor) error) error {
	if t, ok := tx.FromContext(ctx); ok {
		return fn(t)
	}
	t, err := c.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		if rbErr := c.txManager.Rollback(t); rbErr != nil {
			logger.Warnf("Catalog: rollback failed: %v", rbErr)
		}
		return err
	}
	return c.txManager.Commit(t)
}

// LookupTable returns the definition of "<schema>.<table>", or an error wrapping ErrTableNotFound.
func (c *Catalog) LookupTable(ctx context.Context, qualifiedName string) (*TableDefinition, error) {
	schemaName, tableName, err := ParseQualifiedName(qualifiedName)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid table name", err, false, false)
	}
	conn, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	notFound := exception.NewBatchErrorf(moduleName, "table '%s' is not registered", qualifiedName, ErrTableNotFound)

	key := map[string]interface{}{"schema_name": schemaName, "table_name": tableName}
	var tables []TableEntity
	if err := conn.ExecuteQuery(ctx, &tables, key); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, notFound
		}
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to look up table '%s'", qualifiedName), err, false, false)
	}
	if len(tables) == 0 {
		return nil, notFound
	}

	var columns []ColumnEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &columns, key, "position asc", 0); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to load columns of '%s'", qualifiedName), err, false, false)
	}

	t := tables[0]
	def := &TableDefinition{
		Schema:     t.SchemaName,
		Name:       t.Name,
		Location:   t.Location,
		Format:     t.Format,
		CreateTime: t.CreateTime,
		UpdateTime: t.UpdateTime,
		Columns:    make([]Column, 0, len(columns)),
	}
	for _, col := range columns {
		def.Columns = append(def.Columns, Column{Name: col.ColumnName, DataType: col.DataType, Nullable: col.Nullable})
	}
	return def, nil
}

// ListTables returns the names of the tables of schemaName, sorted.
func (c *Catalog) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	conn, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	var tables []TableEntity
	if err := conn.ExecuteQueryAdvanced(ctx, &tables, map[string]interface{}{"schema_name": schemaName}, "table_name asc", 0); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, nil
		}
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to list tables of '%s'", schemaName), err, false, false)
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return names, nil
}
