// Package storage defines the object storage abstractions used to read source files and to
// write table data. Buckets map to directories for the local backend.
package storage

import (
	"context"
	"errors"
	"io"

	storageConfig "github.com/formula1dl/ingest/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/formula1dl/ingest/pkg/batch/core/adapter"
)

// ErrObjectNotFound is returned by Download when the object does not exist.
var ErrObjectNotFound = errors.New("storage object not found")

// StorageExecutor defines the object operations of a storage connection.
type StorageExecutor interface {
	// Upload writes data to objectName, replacing any existing object.
	// An empty bucket selects the configured bucket_name.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens objectName for reading. The caller closes the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object whose name starts with prefix, in lexical order.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named connection to a storage backend.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor

	// Config returns the configuration the connection was opened with.
	Config() storageConfig.StorageConfig
}

// StorageProvider opens and caches connections of one storage type.
type StorageProvider interface {
	GetConnection(name string) (StorageConnection, error)
	CloseAll() error
	// Type returns the storage type served (e.g., "local", "gcs").
	Type() string
	ForceReconnect(name string) (StorageConnection, error)
}

// StorageConnectionResolver resolves storage connections by name.
type StorageConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}

// StorageProviderGroup is the Fx value group collecting every StorageProvider.
const StorageProviderGroup = "storage_providers"
