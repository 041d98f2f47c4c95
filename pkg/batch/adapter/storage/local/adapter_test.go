package local_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/adapter/storage/local"
	coreConfig "github.com/formula1dl/ingest/pkg/batch/core/config"
)

func newResolver(t *testing.T) (*storageAdapter.ConnectionResolver, string) {
	t.Helper()
	baseDir := t.TempDir()
	cfg := coreConfig.NewConfig()
	cfg.Ingest.Adapter.Storage["processed"] = map[string]interface{}{
		"type":        "local",
		"base_dir":    baseDir,
		"bucket_name": "processed",
	}
	cfg.Ingest.Adapter.Storage["remote"] = map[string]interface{}{"type": "gcs"}

	resolver := storageAdapter.NewConnectionResolver(storageAdapter.ConnectionResolverParams{
		Providers: []storageAdapter.StorageProvider{local.NewLocalProvider(cfg)},
		Cfg:       cfg,
	})
	return resolver, baseDir
}

func listAll(t *testing.T, conn storageAdapter.StorageConnection, prefix string) []string {
	t.Helper()
	var names []string
	require.NoError(t, conn.ListObjects(context.Background(), "", prefix, func(objectName string) error {
		names = append(names, objectName)
		return nil
	}))
	return names
}

func TestLocalAdapter_RoundTrip(t *testing.T) {
	resolver, _ := newResolver(t)
	ctx := context.Background()

	conn, err := resolver.ResolveStorageConnection(ctx, "processed")
	require.NoError(t, err)
	assert.Equal(t, "local", conn.Type())
	assert.Equal(t, "processed", conn.Name())

	assert.Empty(t, listAll(t, conn, "races/"), "a missing directory lists nothing")

	require.NoError(t, conn.Upload(ctx, "", "races/part-0.parquet", strings.NewReader("first"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "races/part-1.parquet", strings.NewReader("second"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "circuits/part-0.parquet", strings.NewReader("other"), "application/octet-stream"))

	assert.Equal(t, []string{"races/part-0.parquet", "races/part-1.parquet"}, listAll(t, conn, "races/"))

	rc, err := conn.Download(ctx, "", "races/part-1.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "second", string(data))

	require.NoError(t, conn.Upload(ctx, "", "races/part-1.parquet", strings.NewReader("replaced"), "application/octet-stream"))
	rc, err = conn.Download(ctx, "", "races/part-1.parquet")
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "replaced", string(data))

	require.NoError(t, conn.DeleteObject(ctx, "", "races/part-0.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "", "races/part-0.parquet"), "deleting a missing object succeeds")
	assert.Equal(t, []string{"races/part-1.parquet"}, listAll(t, conn, "races/"))
}

func TestLocalAdapter_DownloadMissingObject(t *testing.T) {
	resolver, _ := newResolver(t)
	conn, err := resolver.ResolveStorageConnection(context.Background(), "processed")
	require.NoError(t, err)

	_, err = conn.Download(context.Background(), "", "raw/races.csv")
	assert.ErrorIs(t, err, storageAdapter.ErrObjectNotFound)
}

func TestLocalAdapter_RejectsPathOutsideBaseDir(t *testing.T) {
	resolver, _ := newResolver(t)
	conn, err := resolver.ResolveStorageConnection(context.Background(), "processed")
	require.NoError(t, err)

	err = conn.Upload(context.Background(), "", "../../escape.txt", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
}

func TestConnectionResolver_Errors(t *testing.T) {
	resolver, _ := newResolver(t)

	_, err := resolver.ResolveStorageConnection(context.Background(), "unknown")
	assert.ErrorContains(t, err, "not found")

	_, err = resolver.ResolveStorageConnection(context.Background(), "remote")
	assert.ErrorContains(t, err, "no storage provider found for type 'gcs'")
}

func TestLocalProvider_CachesConnections(t *testing.T) {
	resolver, _ := newResolver(t)
	first, err := resolver.ResolveStorageConnection(context.Background(), "processed")
	require.NoError(t, err)
	again, err := resolver.ResolveStorageConnection(context.Background(), "processed")
	require.NoError(t, err)
	assert.Same(t, first, again)

	require.NoError(t, resolver.CloseAll())
}
