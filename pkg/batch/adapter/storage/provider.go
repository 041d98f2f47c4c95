package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/formula1dl/ingest/pkg/batch/adapter/storage/config"
	config "github.com/formula1dl/ingest/pkg/batch/core/config"
	"github.com/formula1dl/ingest/pkg/batch/support/util/configbinder"
	"github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// ConnectionFactory opens a connection of one storage type.
type ConnectionFactory func(cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

// DecodeStorageConfig reads adapter.storage.<name> from cfg.
func DecodeStorageConfig(cfg *config.Config, name string) (storageConfig.StorageConfig, error) {
	var storageCfg storageConfig.StorageConfig
	raw, ok := cfg.Ingest.Adapter.Storage[name]
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration '%s' not found under 'adapter.storage'", name)
	}
	if err := configbinder.Bind(raw, &storageCfg); err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return storageCfg, nil
}

// BaseProvider caches the connections of one storage type; the backend packages embed it.
type BaseProvider struct {
	cfg         *config.Config
	storageType string
	factory     ConnectionFactory
	connections map[string]StorageConnection
	mu          sync.RWMutex
}

// NewBaseProvider creates a BaseProvider opening connections with factory.
func NewBaseProvider(cfg *config.Config, storageType string, factory ConnectionFactory) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		storageType: storageType,
		factory:     factory,
		connections: make(map[string]StorageConnection),
	}
}

func (p *BaseProvider) Type() string {
	return p.storageType
}

// GetConnection returns the cached connection called name, opening it on first use.
func (p *BaseProvider) GetConnection(name string) (StorageConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok = p.connections[name]; ok {
		return conn, nil
	}
	return p.open(name)
}

// open must be called with mu held.
func (p *BaseProvider) open(name string) (StorageConnection, error) {
	storageCfg, err := DecodeStorageConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if storageCfg.Type != p.storageType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, p.storageType, storageCfg.Type)
	}

	conn, err := p.factory(storageCfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage connection '%s': %w", p.storageType, name, err)
	}
	p.connections[name] = conn
	logger.Debugf("Opened %s storage connection '%s'.", p.storageType, name)
	return conn, nil
}

func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close %s storage connection '%s': %w", p.storageType, name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

func (p *BaseProvider) ForceReconnect(name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		if err := conn.Close(); err != nil {
			logger.Warnf("Failed to close %s storage connection '%s' during reconnect: %v", p.storageType, name, err)
		}
		delete(p.connections, name)
	}
	return p.open(name)
}
