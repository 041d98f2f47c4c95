// Package adapter declares the connection abstractions shared by the database and storage adapters.
package adapter

import (
	"context"
)

// ResourceConnection is a named connection to a database or storage backend.
type ResourceConnection interface {
	Close() error
	// Type returns the backend type (e.g., "sqlite", "gcs").
	Type() string
	// Name returns the configured connection name (e.g., "metadata", "processed").
	Name() string
}

// ResourceConnectionResolver resolves a connection by name, re-establishing it if needed.
type ResourceConnectionResolver interface {
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
