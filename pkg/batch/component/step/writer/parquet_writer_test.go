package writer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/adapter/storage/local"
	"github.com/formula1dl/ingest/pkg/batch/component/step/reader"
	"github.com/formula1dl/ingest/pkg/batch/component/step/writer"
	coreConfig "github.com/formula1dl/ingest/pkg/batch/core/config"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

type lap struct {
	ID     int32   `parquet:"name=id, type=INT32"`
	Driver *string `parquet:"name=driver, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func strPtr(s string) *string { return &s }

func newResolver(t *testing.T) *storageAdapter.ConnectionResolver {
	t.Helper()
	cfg := coreConfig.NewConfig()
	cfg.Ingest.Adapter.Storage["processed"] = map[string]interface{}{
		"type":        "local",
		"base_dir":    t.TempDir(),
		"bucket_name": "processed",
	}
	return storageAdapter.NewConnectionResolver(storageAdapter.ConnectionResolverParams{
		Providers: []storageAdapter.StorageProvider{local.NewLocalProvider(cfg)},
		Cfg:       cfg,
	})
}

func newWriter(t *testing.T, resolver storageAdapter.StorageConnectionResolver) *writer.ParquetWriter[lap] {
	t.Helper()
	cfg, err := writer.NewParquetWriterConfig(map[string]interface{}{
		"storage_ref": "processed",
		"output_dir":  "/laps/",
	})
	require.NoError(t, err)
	assert.Equal(t, "laps", cfg.OutputDir)
	assert.Equal(t, "SNAPPY", cfg.Compression)
	return writer.NewParquetWriter("lapsWriter", resolver, cfg, new(lap))
}

func run(t *testing.T, w *writer.ParquetWriter[lap], chunks ...[]lap) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	for _, chunk := range chunks {
		require.NoError(t, w.Write(ctx, chunk))
	}
	require.NoError(t, w.Close(ctx))
}

func objects(t *testing.T, resolver storageAdapter.StorageConnectionResolver) []string {
	t.Helper()
	conn, err := resolver.ResolveStorageConnection(context.Background(), "processed")
	require.NoError(t, err)
	var names []string
	require.NoError(t, conn.ListObjects(context.Background(), "", "laps/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	return names
}

func readBack(t *testing.T, resolver storageAdapter.StorageConnectionResolver) []lap {
	t.Helper()
	rows, err := reader.ReadParquetObjects(context.Background(), resolver, "processed", "laps/", func() *lap { return new(lap) })
	require.NoError(t, err)
	return rows
}

func TestParquetWriter_OverwritesOutput(t *testing.T) {
	resolver := newResolver(t)
	w := newWriter(t, resolver)

	run(t, w,
		[]lap{{ID: 1, Driver: strPtr("hamilton")}, {ID: 2}},
		[]lap{{ID: 3, Driver: strPtr("leclerc")}},
	)
	first := objects(t, resolver)
	require.Len(t, first, 1)
	assert.True(t, strings.HasPrefix(first[0], "laps/data_"))
	assert.True(t, strings.HasSuffix(first[0], ".parquet"))

	rows := readBack(t, resolver)
	require.Len(t, rows, 3)
	assert.Equal(t, int32(1), rows[0].ID)
	require.NotNil(t, rows[0].Driver)
	assert.Equal(t, "hamilton", *rows[0].Driver)
	assert.Nil(t, rows[1].Driver)

	run(t, w, []lap{{ID: 9, Driver: strPtr("verstappen")}})
	second := objects(t, resolver)
	require.Len(t, second, 1, "previous files are replaced")
	assert.NotEqual(t, first[0], second[0])

	rows = readBack(t, resolver)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(9), rows[0].ID)

	ec, err := w.GetExecutionContext(context.Background())
	require.NoError(t, err)
	location, _ := ec.GetString("lapsWriter.location")
	assert.Equal(t, "processed/laps", location)
	count, _ := ec.GetInt("lapsWriter.recordCount")
	assert.Equal(t, 1, count)
}

func TestParquetWriter_EmptyRunStillWritesFile(t *testing.T) {
	resolver := newResolver(t)
	w := newWriter(t, resolver)

	run(t, w, []lap{{ID: 1}})
	run(t, w)

	require.Len(t, objects(t, resolver), 1)
	assert.Empty(t, readBack(t, resolver))
}

func TestParquetWriter_RollbackKeepsPreviousOutput(t *testing.T) {
	resolver := newResolver(t)
	w := newWriter(t, resolver)
	ctx := context.Background()

	run(t, w, []lap{{ID: 1}, {ID: 2}})
	before := objects(t, resolver)

	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, []lap{{ID: 7}}))
	require.NoError(t, w.Rollback(ctx))

	assert.Equal(t, before, objects(t, resolver))
	assert.Len(t, readBack(t, resolver), 2)
}

// deleteFailingConnection refuses to delete the objects named in protected.
type deleteFailingConnection struct {
	storageAdapter.StorageConnection
	protected map[string]bool
}

func (c *deleteFailingConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	if c.protected[objectName] {
		return errors.New("permission denied")
	}
	return c.StorageConnection.DeleteObject(ctx, bucket, objectName)
}

type deleteFailingResolver struct {
	storageAdapter.StorageConnectionResolver
	conn *deleteFailingConnection
}

func (r *deleteFailingResolver) ResolveStorageConnection(ctx context.Context, name string) (storageAdapter.StorageConnection, error) {
	conn, err := r.StorageConnectionResolver.ResolveStorageConnection(ctx, name)
	if err != nil {
		return nil, err
	}
	r.conn.StorageConnection = conn
	return r.conn, nil
}

func TestParquetWriter_FailedDeleteKeepsPreviousOutput(t *testing.T) {
	resolver := newResolver(t)
	run(t, newWriter(t, resolver), []lap{{ID: 1}, {ID: 2}})
	before := objects(t, resolver)
	require.Len(t, before, 1)

	failing := &deleteFailingResolver{
		StorageConnectionResolver: resolver,
		conn:                      &deleteFailingConnection{protected: map[string]bool{before[0]: true}},
	}
	w := newWriter(t, failing)
	ctx := context.Background()
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, []lap{{ID: 10}}))

	err := w.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDestinationUnwritable))
	assert.Contains(t, err.Error(), "failed to remove previous output")

	assert.Equal(t, before, objects(t, resolver))
	rows := readBack(t, resolver)
	require.Len(t, rows, 2)
	assert.Equal(t, int32(1), rows[0].ID)
	assert.Equal(t, int32(2), rows[1].ID)
}

func TestParquetWriter_UnknownStorage(t *testing.T) {
	w := writer.NewParquetWriter("lapsWriter", newResolver(t), writer.ParquetWriterConfig{StorageRef: "missing", OutputDir: "laps"}, new(lap))

	err := w.Open(context.Background(), model.NewExecutionContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDestinationUnwritable))
	assert.True(t, exception.IsFatal(err))
}

func TestParquetWriter_WriteBeforeOpen(t *testing.T) {
	w := writer.NewParquetWriter("lapsWriter", newResolver(t), writer.ParquetWriterConfig{StorageRef: "processed", OutputDir: "laps"}, new(lap))
	assert.Error(t, w.Write(context.Background(), []lap{{ID: 1}}))
}

func TestNewParquetWriterConfig(t *testing.T) {
	_, err := writer.NewParquetWriterConfig(map[string]interface{}{"output_dir": "laps"})
	assert.Error(t, err)

	_, err = writer.NewParquetWriterConfig(map[string]interface{}{"storage_ref": "processed"})
	assert.Error(t, err)

	cfg, err := writer.NewParquetWriterConfig(map[string]interface{}{
		"storage_ref": "processed",
		"output_dir":  "laps",
		"compression": "gzip",
	})
	require.NoError(t, err)
	assert.Equal(t, "gzip", cfg.Compression)
}

func TestParquetWriter_UnsupportedCompression(t *testing.T) {
	resolver := newResolver(t)
	w := writer.NewParquetWriter("lapsWriter", resolver, writer.ParquetWriterConfig{StorageRef: "processed", OutputDir: "laps", Compression: "BROTLI9"}, new(lap))
	ctx := context.Background()

	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, []lap{{ID: 1}}))
	assert.Error(t, w.Close(ctx))
	assert.Empty(t, objects(t, resolver))
}
