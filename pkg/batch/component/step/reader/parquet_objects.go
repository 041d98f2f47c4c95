package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// ReadParquetObjects decodes every ".parquet" object under prefix into a single slice.
func ReadParquetObjects[T any](ctx context.Context, resolver storageAdapter.StorageConnectionResolver, storageRef, prefix string, newPrototype func() *T) ([]T, error) {
	conn, err := resolver.ResolveStorageConnection(ctx, storageRef)
	if err != nil {
		return nil, err
	}

	var objects []string
	if err := conn.ListObjects(ctx, "", prefix, func(objectName string) error {
		if strings.HasSuffix(objectName, ".parquet") {
			objects = append(objects, objectName)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	var all []T
	for _, objectName := range objects {
		rows, err := readParquetObject(ctx, conn, objectName, newPrototype)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", objectName, err)
		}
		all = append(all, rows...)
	}
	logger.Debugf("Read %d rows from %d parquet object(s) under '%s/%s'.", len(all), len(objects), storageRef, prefix)
	return all, nil
}

// readParquetObject stages the object in a temporary file, since parquet decoding needs random access.
func readParquetObject[T any](ctx context.Context, conn storageAdapter.StorageConnection, objectName string, newPrototype func() *T) ([]T, error) {
	body, err := conn.Download(ctx, "", objectName)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "ingest-*.parquet")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	pf, err := local.NewLocalFileReader(tmp.Name())
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	pr, err := reader.NewParquetReader(pf, newPrototype(), 4)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]T, n)
	if n == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
