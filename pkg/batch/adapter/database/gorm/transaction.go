package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	tx "github.com/formula1dl/ingest/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx on an open gorm transaction.
type GormTxAdapter struct {
	db *gorm.DB
}

func (t *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	return executeUpdate(t.db.WithContext(ctx), model, operation, tableName, query)
}

func (t *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	return executeUpsert(t.db.WithContext(ctx), model, tableName, conflictColumns, updateColumns)
}

// GormTransactionManager begins transactions on the connection called dbName,
// resolving it anew for every transaction so that a reconnected pool is picked up.
type GormTransactionManager struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

// NewGormTransactionManager creates a GormTransactionManager for the connection called dbName.
func NewGormTransactionManager(dbResolver database.DBConnectionResolver, dbName string) *GormTransactionManager {
	return &GormTransactionManager{dbResolver: dbResolver, dbName: dbName}
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("internal error: DBConnection implementation is not *GormDBAdapter")
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}

	gormTx := adapter.GetGormDB().WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTxAdapter{db: gormTx}, nil
}

func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTxAdapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter")
	}
	return gormTxAdapter.db.Commit().Error
}

func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTxAdapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter")
	}
	return gormTxAdapter.db.Rollback().Error
}

// TransactionManagerFactory creates TransactionManagers for named connections.
type TransactionManagerFactory interface {
	NewTransactionManager(dbName string) tx.TransactionManager
}

// GormTransactionManagerFactory is the gorm TransactionManagerFactory.
type GormTransactionManagerFactory struct {
	dbResolver database.DBConnectionResolver
}

func NewGormTransactionManagerFactory(dbResolver database.DBConnectionResolver) TransactionManagerFactory {
	return &GormTransactionManagerFactory{dbResolver: dbResolver}
}

func (f *GormTransactionManagerFactory) NewTransactionManager(dbName string) tx.TransactionManager {
	return NewGormTransactionManager(f.dbResolver, dbName)
}

var (
	_ tx.Tx                 = (*GormTxAdapter)(nil)
	_ tx.TransactionManager = (*GormTransactionManager)(nil)
)
