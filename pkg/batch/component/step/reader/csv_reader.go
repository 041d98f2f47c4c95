// Package reader provides generic ItemReader implementations over storage objects.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	port "github.com/formula1dl/ingest/pkg/batch/core/application/port"
	model "github.com/formula1dl/ingest/pkg/batch/core/domain/model"
	configbinder "github.com/formula1dl/ingest/pkg/batch/support/util/configbinder"
	exception "github.com/formula1dl/ingest/pkg/batch/support/util/exception"
	logger "github.com/formula1dl/ingest/pkg/batch/support/util/logger"
)

// Strictness selects how rows that do not conform to the schema are handled.
type Strictness string

const (
	// Permissive nulls nullable cells that cannot be coerced and skips rows whose required cells cannot.
	Permissive Strictness = "PERMISSIVE"
	// FailFast fails the step on the first row that cannot be coerced.
	FailFast Strictness = "FAILFAST"
)

// ParseStrictness parses a strictness name, case-insensitively. Empty means Permissive.
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(strings.ToUpper(strings.TrimSpace(s))) {
	case "", Permissive:
		return Permissive, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("unknown strictness %q", s)
	}
}

// RowMapper converts CSV rows into items.
type RowMapper[T any] interface {
	// Bind checks the header row and resolves column positions. It is called once per Open.
	Bind(header []string) error
	// Map converts one data row. Errors should be BatchErrors whose skippable flag reflects mode.
	Map(row []string, mode Strictness) (T, error)
}

// CSVReaderConfig configures a CSVReader.
type CSVReaderConfig struct {
	// StorageRef names the storage connection holding the file. Empty reads Path from the local file system.
	StorageRef string `yaml:"storage_ref"`
	// Path is the object name within the connection's bucket, or a file path.
	Path string `yaml:"path"`
	// Delimiter defaults to ','.
	Delimiter  string     `yaml:"delimiter"`
	Strictness Strictness `yaml:"strictness"`
}

// NewCSVReaderConfig binds properties into a CSVReaderConfig.
func NewCSVReaderConfig(properties map[string]interface{}) (CSVReaderConfig, error) {
	var cfg CSVReaderConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Path == "" {
		return cfg, fmt.Errorf("csv reader: path is required")
	}
	mode, err := ParseStrictness(string(cfg.Strictness))
	if err != nil {
		return cfg, fmt.Errorf("csv reader: %w", err)
	}
	cfg.Strictness = mode
	return cfg, nil
}

// CSVReader reads a headed CSV file row by row through a RowMapper.
//
// The header is validated in Open, so a structurally wrong file fails before any item is
// returned. The number of data rows consumed is kept under "<name>.readCount"; opening with
// a context that holds it skips that many rows.
type CSVReader[T any] struct {
	name     string
	resolver storageAdapter.StorageConnectionResolver
	config   CSVReaderConfig
	mapper   RowMapper[T]

	source    io.ReadCloser
	csv       *csv.Reader
	readCount int
	ec        model.ExecutionContext
}

// NewCSVReader creates a CSVReader. resolver may be nil when the config has no storage_ref.
func NewCSVReader[T any](name string, resolver storageAdapter.StorageConnectionResolver, cfg CSVReaderConfig, mapper RowMapper[T]) *CSVReader[T] {
	if cfg.Strictness == "" {
		cfg.Strictness = Permissive
	}
	return &CSVReader[T]{
		name:     name,
		resolver: resolver,
		config:   cfg,
		mapper:   mapper,
		ec:       model.NewExecutionContext(),
	}
}

func (r *CSVReader[T]) readCountKey() string {
	return r.name + ".readCount"
}

// Open opens the source, validates the header and skips rows already consumed.
func (r *CSVReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		r.ec = ec
	}

	source, err := r.openSource(ctx)
	if err != nil {
		return exception.NewBatchError(r.name, fmt.Sprintf("failed to open '%s'", r.config.Path),
			fmt.Errorf("%w: %w", exception.ErrSourceUnreadable, err), false, false)
	}
	r.source = source

	r.csv = csv.NewReader(source)
	r.csv.FieldsPerRecord = -1
	if r.config.Delimiter != "" {
		r.csv.Comma = []rune(r.config.Delimiter)[0]
	}

	header, err := r.csv.Read()
	if err != nil {
		r.closeSource()
		if errors.Is(err, io.EOF) {
			return exception.NewBatchError(r.name, fmt.Sprintf("'%s' has no header row", r.config.Path), exception.ErrSchemaMismatch, false, false)
		}
		return exception.NewBatchError(r.name, fmt.Sprintf("failed to read header of '%s'", r.config.Path),
			fmt.Errorf("%w: %w", exception.ErrSourceUnreadable, err), false, false)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if err := r.mapper.Bind(header); err != nil {
		r.closeSource()
		return exception.NewBatchError(r.name, fmt.Sprintf("header of '%s' does not match the schema", r.config.Path), err, false, false)
	}

	r.readCount = 0
	resumeAt, _ := r.ec.GetInt(r.readCountKey())
	for r.readCount < resumeAt {
		if _, err := r.csv.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				r.closeSource()
				return exception.NewBatchError(r.name, "failed to skip consumed rows",
					fmt.Errorf("%w: %w", exception.ErrSourceUnreadable, err), false, false)
			}
		}
		r.readCount++
	}
	if resumeAt > 0 {
		logger.Infof("CSVReader '%s': resuming '%s' after %d rows.", r.name, r.config.Path, r.readCount)
	} else {
		logger.Infof("CSVReader '%s': reading '%s' (%s).", r.name, r.config.Path, r.config.Strictness)
	}
	return nil
}

func (r *CSVReader[T]) openSource(ctx context.Context) (io.ReadCloser, error) {
	if r.config.StorageRef == "" {
		return os.Open(r.config.Path)
	}
	if r.resolver == nil {
		return nil, fmt.Errorf("no storage resolver for '%s'", r.config.StorageRef)
	}
	conn, err := r.resolver.ResolveStorageConnection(ctx, r.config.StorageRef)
	if err != nil {
		return nil, err
	}
	return conn.Download(ctx, "", r.config.Path)
}

// Read returns the next mapped row, or io.EOF.
func (r *CSVReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.csv == nil {
		return zero, exception.NewBatchError(r.name, "reader is not open", nil, false, false)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	row, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.advance()
			return zero, exception.NewBatchError(r.name, fmt.Sprintf("malformed row at line %d", parseErr.Line),
				fmt.Errorf("%w: %w", exception.ErrTypeCoercion, err), r.config.Strictness == Permissive, false)
		}
		return zero, exception.NewBatchError(r.name, "failed to read row",
			fmt.Errorf("%w: %w", exception.ErrSourceUnreadable, err), false, false)
	}
	r.advance()

	item, err := r.mapper.Map(row, r.config.Strictness)
	if err != nil {
		line, _ := r.csv.FieldPos(0)
		logger.Debugf("CSVReader '%s': row at line %d rejected: %v", r.name, line, err)
		return zero, err
	}
	return item, nil
}

func (r *CSVReader[T]) advance() {
	r.readCount++
	r.ec.Put(r.readCountKey(), r.readCount)
}

// Close closes the source.
func (r *CSVReader[T]) Close(ctx context.Context) error {
	err := r.closeSource()
	r.csv = nil
	return err
}

func (r *CSVReader[T]) closeSource() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}

func (r *CSVReader[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec
	return nil
}

func (r *CSVReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	r.ec.Put(r.readCountKey(), r.readCount)
	return r.ec, nil
}

var _ port.ItemReader[any] = (*CSVReader[any])(nil)
