package gorm

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/formula1dl/ingest/pkg/batch/adapter/database"
	coreAdapter "github.com/formula1dl/ingest/pkg/batch/core/adapter"
	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// GormDBConnectionResolver resolves connections through the DBProvider of their configured type.
type GormDBConnectionResolver struct {
	dbProviders map[string]database.DBProvider
	cfg         *config.Config
}

// GormDBConnectionResolverParams collects every DBProvider registered in the db_providers group.
type GormDBConnectionResolverParams struct {
	fx.In
	DBProviders []database.DBProvider `group:"db_providers"`
	Cfg         *config.Config
}

// NewGormDBConnectionResolver creates a resolver over the given providers.
//
// Parameters:
//
//	p: The providers, keyed by their Type(), and the application Config.
//
// Returns:
//
//	A new GormDBConnectionResolver instance.
func NewGormDBConnectionResolver(p GormDBConnectionResolverParams) *GormDBConnectionResolver {
	providerMap := make(map[string]database.DBProvider)
	for _, provider := range p.DBProviders {
		providerMap[provider.Type()] = provider
	}
	return &GormDBConnectionResolver{
		dbProviders: providerMap,
		cfg:         p.Cfg,
	}
}

// Provider returns the provider serving the connection called name.
func (r *GormDBConnectionResolver) Provider(name string) (database.DBProvider, error) {
	dbConfig, err := DecodeDatabaseConfig(r.cfg, name)
	if err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: %w", err)
	}
	provider, ok := r.dbProviders[providerTypeFor(dbConfig.Type)]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: DBProvider for type '%s' not found for connection '%s'", dbConfig.Type, name)
	}
	return provider, nil
}

// ResolveDBConnection resolves the connection called name and reconnects it when its ping fails.
//
// Parameters:
//
//	ctx: The context for the operation.
//	name: The name of the database connection to resolve.
//
// Returns:
//
//	The resolved database.DBConnection and an error if resolution or reconnection fails.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	provider, err := r.Provider(name)
	if err != nil {
		return nil, err
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: Failed to get connection '%s': %w", name, err)
	}

	if pingErr := conn.RefreshConnection(ctx); pingErr != nil {
		logger.Warnf("DBConnectionResolver: Connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		reconnectedConn, reconnectErr := provider.ForceReconnect(name)
		if reconnectErr != nil {
			return nil, fmt.Errorf("DBConnectionResolver: Failed to reconnect connection '%s': %w", name, reconnectErr)
		}
		logger.Infof("DBConnectionResolver: Successfully reconnected connection '%s'.", name)
		return reconnectedConn, nil
	}
	return conn, nil
}

// ResolveConnection implements coreAdapter.ResourceConnectionResolver.
func (r *GormDBConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveDBConnection(ctx, name)
}

// ForceReconnect reopens the connection called name.
func (r *GormDBConnectionResolver) ForceReconnect(name string) (database.DBConnection, error) {
	provider, err := r.Provider(name)
	if err != nil {
		return nil, err
	}
	return provider.ForceReconnect(name)
}

// CloseAll closes the connections of every provider.
func (r *GormDBConnectionResolver) CloseAll() error {
	var firstErr error
	for _, provider := range r.dbProviders {
		if err := provider.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ database.DBConnectionResolver = (*GormDBConnectionResolver)(nil)
