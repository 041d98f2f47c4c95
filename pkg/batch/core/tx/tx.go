// Package tx abstracts database transactions so that components can write
// through the same executor with or without an active transaction.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines write operations available both on a connection and inside a transaction.
type TxExecutor interface {
	// ExecuteUpdate performs a write on model.
	//
	// operation is one of "CREATE", "UPDATE" or "DELETE". query holds equality conditions
	// (column -> value, combined with AND) for UPDATE and DELETE.
	// It returns the number of affected rows.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model, or on a conflict over conflictColumns updates updateColumns.
	// An empty updateColumns turns the conflict into DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx is an ongoing transaction.
type Tx interface {
	TxExecutor
}

// TransactionManager begins, commits and rolls back transactions on one connection.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type contextKey struct{}

// WithTx returns a context carrying t; repositories write through it when present.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(contextKey{}).(Tx)
	return t, ok
}
