package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	coreAdapter "github.com/formula1dl/ingest/pkg/batch/core/adapter"
	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// ConnectionResolver resolves storage connections through the provider of their configured type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *config.Config
}

// ConnectionResolverParams collects every StorageProvider of the storage_providers group.
type ConnectionResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *config.Config
}

// NewConnectionResolver creates a ConnectionResolver over the given providers.
func NewConnectionResolver(p ConnectionResolverParams) *ConnectionResolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &ConnectionResolver{providers: providers, cfg: p.Cfg}
}

func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	storageCfg, err := DecodeStorageConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[storageCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", storageCfg.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, storageCfg.Type, err)
	}
	return conn, nil
}

func (r *ConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// CloseAll closes the connections of every provider.
func (r *ConnectionResolver) CloseAll() error {
	var firstErr error
	for storageType, provider := range r.providers {
		if err := provider.CloseAll(); err != nil {
			logger.Warnf("Failed to close %s storage connections: %v", storageType, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var _ StorageConnectionResolver = (*ConnectionResolver)(nil)
