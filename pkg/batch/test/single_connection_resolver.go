package test

import (
	"context"
	"fmt"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	coreAdapter "github.com/formula1dl/ingest/pkg/batch/core/adapter"
)

// SingleConnectionResolver resolves every name to the same connection.
type SingleConnectionResolver struct {
	Conn database.DBConnection
	// Names restricts the names that resolve. Empty accepts any name.
	Names []string
}

// NewSingleConnectionResolver returns a resolver that always yields conn.
func NewSingleConnectionResolver(conn database.DBConnection) *SingleConnectionResolver {
	return &SingleConnectionResolver{Conn: conn}
}

func (r *SingleConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	if len(r.Names) > 0 {
		found := false
		for _, n := range r.Names {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("database connection '%s' is not configured", name)
		}
	}
	return r.Conn, nil
}

func (r *SingleConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveDBConnection(ctx, name)
}

var _ database.DBConnectionResolver = (*SingleConnectionResolver)(nil)
