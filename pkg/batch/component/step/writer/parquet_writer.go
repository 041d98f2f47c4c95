// Package writer provides generic ItemWriter implementations.
package writer

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	configbinder "github.com/formula1dl/ingest/pkg/batch/support/util/configbinder"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

const parquetContentType = "application/octet-stream"

// ParquetWriterConfig configures a ParquetWriter.
type ParquetWriterConfig struct {
	// StorageRef names the storage connection under adapter.storage.
	StorageRef string `yaml:"storage_ref"`
	// OutputDir is the object prefix that holds the table files, e.g. "races".
	OutputDir string `yaml:"output_dir"`
	// Compression is SNAPPY (default), GZIP or NONE.
	Compression string `yaml:"compression"`
}

// NewParquetWriterConfig binds properties into a ParquetWriterConfig.
func NewParquetWriterConfig(properties map[string]interface{}) (ParquetWriterConfig, error) {
	cfg := ParquetWriterConfig{Compression: "SNAPPY"}
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return cfg, err
	}
	if cfg.StorageRef == "" {
		return cfg, fmt.Errorf("parquet writer: storage_ref is required")
	}
	cfg.OutputDir = strings.Trim(cfg.OutputDir, "/")
	if cfg.OutputDir == "" {
		return cfg, fmt.Errorf("parquet writer: output_dir is required")
	}
	return cfg, nil
}

// ParquetWriter buffers items and, on Close, replaces the contents of the output directory
// with a single parquet file.
//
// Nothing touches the destination before Close. A zero-item run still writes a file that
// carries the schema. Rollback drops the buffer and leaves the previous output in place.
type ParquetWriter[T any] struct {
	name      string
	resolver  storageAdapter.StorageConnectionResolver
	config    ParquetWriterConfig
	prototype *T
	conn      storageAdapter.StorageConnection
	buffer    []T
	ec        model.ExecutionContext
	now       func() time.Time
}

// NewParquetWriter creates a ParquetWriter. prototype is a pointer to a struct carrying parquet tags.
func NewParquetWriter[T any](name string, resolver storageAdapter.StorageConnectionResolver, cfg ParquetWriterConfig, prototype *T) *ParquetWriter[T] {
	if cfg.Compression == "" {
		cfg.Compression = "SNAPPY"
	}
	return &ParquetWriter[T]{
		name:      name,
		resolver:  resolver,
		config:    cfg,
		prototype: prototype,
		ec:        model.NewExecutionContext(),
		now:       time.Now,
	}
}

// Location returns "<storage_ref>/<output_dir>", the value registered in the catalog.
func (w *ParquetWriter[T]) Location() string {
	return w.config.StorageRef + "/" + w.config.OutputDir
}

// Open resolves the storage connection.
func (w *ParquetWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		w.ec = ec
	}
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.config.StorageRef)
	if err != nil {
		return exception.NewBatchError(w.name, fmt.Sprintf("failed to resolve storage connection '%s'", w.config.StorageRef),
			fmt.Errorf("%w: %w", exception.ErrDestinationUnwritable, err), false, false)
	}
	w.conn = conn
	w.buffer = w.buffer[:0]
	logger.Debugf("ParquetWriter '%s' opened on '%s'.", w.name, w.Location())
	return nil
}

// Write buffers items until Close.
func (w *ParquetWriter[T]) Write(ctx context.Context, items []T) error {
	if w.conn == nil {
		return exception.NewBatchError(w.name, "writer is not open", nil, false, false)
	}
	w.buffer = append(w.buffer, items...)
	return nil
}

// Close encodes the buffer, uploads the new file and removes every other object under the
// output directory. When a previous object cannot be removed the new file is deleted again
// so the directory never mixes old and new rows.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	if w.conn == nil {
		return nil
	}
	defer func() { w.buffer = nil }()

	data, err := w.encode()
	if err != nil {
		return exception.NewBatchError(w.name, "failed to encode parquet data", err, false, false)
	}

	var previous []string
	if err := w.conn.ListObjects(ctx, "", w.config.OutputDir+"/", func(objectName string) error {
		previous = append(previous, objectName)
		return nil
	}); err != nil {
		return w.unwritable("failed to list existing output", err)
	}

	objectName := path.Join(w.config.OutputDir, w.fileName())
	if err := w.conn.Upload(ctx, "", objectName, bytes.NewReader(data), parquetContentType); err != nil {
		return w.unwritable(fmt.Sprintf("failed to upload '%s'", objectName), err)
	}

	var result *multierror.Error
	for _, old := range previous {
		if old == objectName {
			continue
		}
		if err := w.conn.DeleteObject(ctx, "", old); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", old, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		if delErr := w.conn.DeleteObject(ctx, "", objectName); delErr != nil {
			logger.Errorf("ParquetWriter '%s': failed to withdraw '%s' after a failed overwrite: %v", w.name, objectName, delErr)
		}
		return w.unwritable("failed to remove previous output", err)
	}

	w.ec.Put(w.name+".location", w.Location())
	w.ec.Put(w.name+".objectName", objectName)
	w.ec.Put(w.name+".recordCount", len(w.buffer))
	logger.Infof("ParquetWriter '%s': wrote %d records to '%s', replaced %d previous object(s).",
		w.name, len(w.buffer), objectName, len(previous))
	return nil
}

// Rollback discards the buffered items.
func (w *ParquetWriter[T]) Rollback(ctx context.Context) error {
	logger.Warnf("ParquetWriter '%s': discarding %d buffered records.", w.name, len(w.buffer))
	w.buffer = nil
	return nil
}

func (w *ParquetWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec
	return nil
}

func (w *ParquetWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec, nil
}

func (w *ParquetWriter[T]) encode() (data []byte, err error) {
	codec, err := compressionCodec(w.config.Compression)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, w.prototype, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for i := range w.buffer {
		if err := pw.Write(w.buffer[i]); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	// parquet-go panics on some schema errors inside WriteStop.
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("parquet WriteStop panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *ParquetWriter[T]) fileName() string {
	return fmt.Sprintf("data_%s_%s.parquet", w.now().UTC().Format("20060102T150405"), randomSuffix(8))
}

func (w *ParquetWriter[T]) unwritable(message string, err error) error {
	return exception.NewBatchError(w.name, message, fmt.Errorf("%w: %w", exception.ErrDestinationUnwritable, err), false, false)
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "", "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return parquet.CompressionCodec_UNCOMPRESSED, fmt.Errorf("unsupported compression %q", name)
	}
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			b[i] = suffixAlphabet[i%len(suffixAlphabet)]
			continue
		}
		b[i] = suffixAlphabet[idx.Int64()]
	}
	return string(b)
}

var _ port.ItemWriter[any] = (*ParquetWriter[any])(nil)
